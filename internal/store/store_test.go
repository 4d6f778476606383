package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/supportdesk/internal/domain"
)

func newTestSQLite(t *testing.T) *SQLStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "tickets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleTicket(id, summary string) *domain.Ticket {
	return &domain.Ticket{
		TicketID:        id,
		ClientID:        "client-1",
		IssueCategory:   summary,
		Sentiment:       "Negative",
		Priority:        domain.PriorityMedium,
		Solution:        "Restart the exporter.",
		Summary:         summary,
		Actions:         []string{"Check exporter logs"},
		Recommendations: []string{"Restart the exporter."},
		Routing:         domain.Routing{PrimaryTeam: domain.TeamDevelopment},
		TimeEstimate:    "Estimated Resolution Time: 2 hours",
		Conversation: []domain.Message{
			{Role: domain.RoleUser, Content: "Export fails", Timestamp: "2024-01-01 10:00:00"},
		},
		Timestamp: "2024-01-01 10:00:00",
	}
}

func TestSaveAndGetTicket(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTicket(ctx, sampleTicket("TICKET-1", "Export job fails with error 500")))

	got, err := s.GetTicket(ctx, "TICKET-1")
	require.NoError(t, err)
	assert.Equal(t, "client-1", got.ClientID)
	assert.Equal(t, domain.StatusOpen, got.ResolutionStatus)
	assert.Equal(t, []string{"Check exporter logs"}, got.Actions)
	assert.Equal(t, domain.TeamDevelopment, got.Routing.PrimaryTeam)
	assert.Equal(t, []string{}, got.Routing.AdditionalTeams)
	require.Len(t, got.Conversation, 1)
	assert.Equal(t, "Export fails", got.Conversation[0].Content)
	assert.Nil(t, got.DateOfResolution)
	assert.False(t, got.CreatedAt.IsZero())

	exists, err := s.TicketExists(ctx, "TICKET-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.TicketExists(ctx, "TICKET-2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGetTicketNotFound(t *testing.T) {
	s := newTestSQLite(t)
	_, err := s.GetTicket(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveTicketValidates(t *testing.T) {
	s := newTestSQLite(t)
	err := s.SaveTicket(context.Background(), &domain.Ticket{})
	assert.ErrorIs(t, err, ErrInvalidTicket)
	err = s.SaveTicket(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidTicket)
}

func TestSaveTicketUpsertPreservesStatus(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTicket(ctx, sampleTicket("TICKET-1", "first summary")))
	require.NoError(t, s.UpdateTicketStatus(ctx, "TICKET-1", domain.StatusInProgress))

	updated := sampleTicket("TICKET-1", "second summary")
	updated.ResolutionStatus = domain.StatusOpen
	require.NoError(t, s.SaveTicket(ctx, updated))

	got, err := s.GetTicket(ctx, "TICKET-1")
	require.NoError(t, err)
	assert.Equal(t, "second summary", got.Summary)
	assert.Equal(t, domain.StatusInProgress, got.ResolutionStatus)
}

func TestUpdateTicketStatus(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	fixed := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.SaveTicket(ctx, sampleTicket("TICKET-1", "summary")))
	require.NoError(t, s.UpdateTicketStatus(ctx, "TICKET-1", domain.StatusResolved))

	got, err := s.GetTicket(ctx, "TICKET-1")
	require.NoError(t, err)
	assert.True(t, got.IsResolved())
	require.NotNil(t, got.DateOfResolution)
	assert.Equal(t, fixed.Unix(), got.DateOfResolution.Unix())

	assert.ErrorIs(t, s.UpdateTicketStatus(ctx, "missing", domain.StatusOpen), ErrNotFound)
	assert.ErrorIs(t, s.UpdateTicketStatus(ctx, "TICKET-1", "Exploded"), ErrInvalidStatus)
}

func TestSimilarTickets(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.SaveTicket(ctx, sampleTicket("T-1", "Password reset email never arrives")))
	require.NoError(t, s.SaveTicket(ctx, sampleTicket("T-2", "Export job fails with error 500 on large files")))
	require.NoError(t, s.SaveTicket(ctx, sampleTicket("T-3", "Export button missing")))
	require.NoError(t, s.SaveTicket(ctx, sampleTicket("T-4", "")))

	got, err := s.SimilarTickets(ctx, "Customer: my export job fails with error 500", 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Export job fails with error 500 on large files", got[0].Summary)
	assert.Equal(t, "Restart the exporter.", got[0].Resolution)
	assert.Equal(t, "Export button missing", got[1].Summary)

	got, err = s.SimilarTickets(ctx, "nothing relevant", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolutionTimeSamples(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	created := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return created }

	high := sampleTicket("T-1", "Checkout outage for all users")
	high.Priority = domain.PriorityHigh
	require.NoError(t, s.SaveTicket(ctx, high))

	resolved := sampleTicket("T-2", "Checkout page slow")
	require.NoError(t, s.SaveTicket(ctx, resolved))
	s.now = func() time.Time { return created.Add(3 * time.Hour) }
	require.NoError(t, s.UpdateTicketStatus(ctx, "T-2", domain.StatusResolved))

	got, err := s.ResolutionTimeSamples(ctx, "checkout is broken", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []float64{2.5, 3.0}, got)
}

func TestGenerateUniqueTicketID(t *testing.T) {
	taken := map[string]bool{"TICKET-100": true, "TICKET-100-1": true}
	checker := ExistenceFunc(func(_ context.Context, id string) (bool, error) {
		return taken[id], nil
	})

	assert.Equal(t, "TICKET-100-2", GenerateUniqueTicketID(context.Background(), checker, "TICKET-100"))
	assert.Equal(t, "TICKET-200", GenerateUniqueTicketID(context.Background(), checker, "TICKET-200"))
}

func TestGenerateUniqueTicketIDCheckerError(t *testing.T) {
	checker := ExistenceFunc(func(context.Context, string) (bool, error) {
		return false, errors.New("db down")
	})
	assert.Equal(t, "TICKET-1", GenerateUniqueTicketID(context.Background(), checker, "TICKET-1"))
}

func TestGenerateUniqueTicketIDExhausted(t *testing.T) {
	checker := ExistenceFunc(func(context.Context, string) (bool, error) {
		return true, nil
	})
	assert.Equal(t, "TICKET-1-100", GenerateUniqueTicketID(context.Background(), checker, "TICKET-1"))
}

func TestBaseTicketID(t *testing.T) {
	assert.Equal(t, "TICKET-1700000000", BaseTicketID(time.Unix(1_700_000_000, 0)))
}

func TestDerivePriority(t *testing.T) {
	assert.Equal(t, domain.PriorityMedium, DerivePriority([]string{"Check logs"}, domain.Routing{}))
	assert.Equal(t, domain.PriorityHigh, DerivePriority([]string{"Escalate the OUTAGE to on-call"}, domain.Routing{}))
	assert.Equal(t, domain.PriorityCritical,
		DerivePriority(nil, domain.Routing{PrimaryTeam: domain.TeamSecurity}))
}

func TestNewTicket(t *testing.T) {
	session := domain.NewSession("client-1", "TICKET-9")
	session.Append(domain.Message{Role: domain.RoleUser, Content: "This is terrible, the export failed again", Timestamp: "2024-01-01 10:00:00"})

	ticket := NewTicket(session.Snapshot(), "2024-01-01 10:00:01")
	assert.Equal(t, "TICKET-9", ticket.TicketID)
	assert.Equal(t, uncategorized, ticket.IssueCategory)
	assert.Equal(t, pendingSolution, ticket.Solution)
	assert.Equal(t, domain.StatusOpen, ticket.ResolutionStatus)
	assert.Equal(t, domain.PriorityMedium, ticket.Priority)
	assert.Equal(t, "Negative", ticket.Sentiment)
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "a = $1 AND b = $2", postgresDialect.rebind("a = ? AND b = ?"))
	assert.Equal(t, "a = ?", sqliteDialect.rebind("a = ?"))
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := NewPostgres(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	id := BaseTicketID(time.Now()) + "-pgtest"
	require.NoError(t, s.SaveTicket(ctx, sampleTicket(id, "Postgres roundtrip")))
	got, err := s.GetTicket(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Postgres roundtrip", got.Summary)
}

func TestSQLitePragmasApplyToEveryConnection(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for i := range 3 {
		conn, err := s.db.Conn(ctx)
		require.NoError(t, err)
		defer conn.Close()

		var mode string
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
		assert.Equal(t, "wal", mode, "connection %d", i)

		var timeout int
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		assert.Equal(t, 5000, timeout, "connection %d", i)
	}
}
