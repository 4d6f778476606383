package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/supportdesk/internal/domain"
	"github.com/ashureev/supportdesk/internal/metrics"
	"github.com/ashureev/supportdesk/internal/shared"
)

// similarScanLimit bounds how many recent tickets are ranked per lookup.
const similarScanLimit = 500

const ticketsSchema = `
	CREATE TABLE IF NOT EXISTS tickets (
		ticket_id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL DEFAULT '',
		issue_category TEXT NOT NULL,
		sentiment TEXT NOT NULL,
		priority TEXT NOT NULL,
		solution TEXT NOT NULL,
		resolution_status TEXT NOT NULL,
		date_of_resolution BIGINT,
		summary TEXT NOT NULL,
		actions_json TEXT NOT NULL,
		recommendations_json TEXT NOT NULL,
		routing_json TEXT NOT NULL,
		time_estimate TEXT NOT NULL,
		conversation_json TEXT NOT NULL,
		message_timestamp TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tickets_updated ON tickets(updated_at);
	CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(resolution_status);
	`

// dialect captures the differences between the supported SQL backends.
type dialect struct {
	name     string
	numbered bool // $1, $2 placeholders instead of ?
}

var (
	sqliteDialect   = dialect{name: "sqlite"}
	postgresDialect = dialect{name: "postgres", numbered: true}
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore implements Repository over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time

	maxRetries int
	baseDelay  time.Duration
}

var _ Repository = (*SQLStore)(nil)

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{
		db:         db,
		dialect:    d,
		now:        time.Now,
		maxRetries: 3,
		baseDelay:  100 * time.Millisecond,
	}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema() error {
	if _, err := s.db.Exec(ticketsSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// withRetry runs fn, retrying with exponential backoff on SQLite
// busy/locked errors.
func (s *SQLStore) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for i := 0; i < s.maxRetries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !shared.IsRetryableDBError(err) || i == s.maxRetries-1 {
			break
		}
		delay := s.baseDelay * time.Duration(1<<i) // 100ms, 200ms, 400ms
		slog.Debug("Store operation conflicted, retrying",
			"operation", op,
			"attempt", i+1,
			"delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	metrics.RecordStoreError(op)
	return err
}

// TicketExists reports whether the ticket has been saved.
func (s *SQLStore) TicketExists(ctx context.Context, ticketID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT 1 FROM tickets WHERE ticket_id = ?`), ticketID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		metrics.RecordStoreError("ticket_exists")
		return false, fmt.Errorf("check ticket exists: %w", err)
	}
	return true, nil
}

// SaveTicket creates or updates a ticket record.
func (s *SQLStore) SaveTicket(ctx context.Context, t *domain.Ticket) error {
	if err := validateTicket(t); err != nil {
		return err
	}

	actionsJSON, err := marshalList(t.Actions)
	if err != nil {
		return fmt.Errorf("encode actions: %w", err)
	}
	recsJSON, err := marshalList(t.Recommendations)
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}
	routing := t.Routing
	if routing.AdditionalTeams == nil {
		routing.AdditionalTeams = []string{}
	}
	routingJSON, err := json.Marshal(routing)
	if err != nil {
		return fmt.Errorf("encode routing: %w", err)
	}
	conversation := t.Conversation
	if conversation == nil {
		conversation = []domain.Message{}
	}
	conversationJSON, err := json.Marshal(conversation)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}

	status := t.ResolutionStatus
	if status == "" {
		status = domain.StatusOpen
	}
	now := s.now()
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := s.dialect.rebind(`
	INSERT INTO tickets (
		ticket_id, client_id, issue_category, sentiment, priority, solution,
		resolution_status, date_of_resolution, summary, actions_json,
		recommendations_json, routing_json, time_estimate, conversation_json,
		message_timestamp, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(ticket_id) DO UPDATE SET
		client_id = excluded.client_id,
		issue_category = excluded.issue_category,
		sentiment = excluded.sentiment,
		priority = excluded.priority,
		solution = excluded.solution,
		summary = excluded.summary,
		actions_json = excluded.actions_json,
		recommendations_json = excluded.recommendations_json,
		routing_json = excluded.routing_json,
		time_estimate = excluded.time_estimate,
		conversation_json = excluded.conversation_json,
		message_timestamp = excluded.message_timestamp,
		updated_at = excluded.updated_at`)

	err = s.withRetry(ctx, "save_ticket", func() error {
		_, err := s.db.ExecContext(ctx, query,
			t.TicketID, t.ClientID, t.IssueCategory, t.Sentiment, t.Priority, t.Solution,
			status, unixOrNil(t.DateOfResolution), t.Summary, actionsJSON,
			recsJSON, string(routingJSON), t.TimeEstimate, string(conversationJSON),
			t.Timestamp, createdAt.Unix(), now.Unix(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert ticket: %w", err)
	}
	return nil
}

const ticketColumns = `ticket_id, client_id, issue_category, sentiment, priority, solution,
		resolution_status, date_of_resolution, summary, actions_json,
		recommendations_json, routing_json, time_estimate, conversation_json,
		message_timestamp, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		t                    domain.Ticket
		resolvedAt           sql.NullInt64
		actionsJSON          string
		recsJSON             string
		routingJSON          string
		convJSON             string
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&t.TicketID, &t.ClientID, &t.IssueCategory, &t.Sentiment, &t.Priority, &t.Solution,
		&t.ResolutionStatus, &resolvedAt, &t.Summary, &actionsJSON,
		&recsJSON, &routingJSON, &t.TimeEstimate, &convJSON,
		&t.Timestamp, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(actionsJSON), &t.Actions); err != nil {
		return nil, fmt.Errorf("decode actions: %w", err)
	}
	if err := json.Unmarshal([]byte(recsJSON), &t.Recommendations); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	if err := json.Unmarshal([]byte(routingJSON), &t.Routing); err != nil {
		return nil, fmt.Errorf("decode routing: %w", err)
	}
	if err := json.Unmarshal([]byte(convJSON), &t.Conversation); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	if resolvedAt.Valid {
		at := time.Unix(resolvedAt.Int64, 0)
		t.DateOfResolution = &at
	}
	t.CreatedAt = time.Unix(createdAt, 0)
	t.UpdatedAt = time.Unix(updatedAt, 0)
	return &t, nil
}

// GetTicket retrieves a ticket by ID.
func (s *SQLStore) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	row := s.db.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = ?`), ticketID)
	t, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.RecordStoreError("get_ticket")
		return nil, fmt.Errorf("scan ticket row: %w", err)
	}
	return t, nil
}

// UpdateTicketStatus sets the resolution status of a ticket.
func (s *SQLStore) UpdateTicketStatus(ctx context.Context, ticketID, status string) error {
	if !ValidStatus(status) {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	now := s.now()
	query := `UPDATE tickets SET resolution_status = ?, updated_at = ?, date_of_resolution = NULL WHERE ticket_id = ?`
	args := []any{status, now.Unix(), ticketID}
	if status == domain.StatusResolved {
		query = `UPDATE tickets SET resolution_status = ?, updated_at = ?, date_of_resolution = ? WHERE ticket_id = ?`
		args = []any{status, now.Unix(), now.Unix(), ticketID}
	}
	query = s.dialect.rebind(query)

	var rows int64
	err := s.withRetry(ctx, "update_status", func() error {
		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		rows, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("update ticket status: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateTicketStatus affected 0 rows", "ticket_id", ticketID)
		return ErrNotFound
	}
	return nil
}

// SimilarTickets ranks recent tickets by word overlap with the conversation.
func (s *SQLStore) SimilarTickets(ctx context.Context, conversation string, limit int) ([]domain.SimilarTicket, error) {
	ranked, err := s.rankSimilar(ctx, conversation, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SimilarTicket, 0, len(ranked))
	for _, c := range ranked {
		out = append(out, domain.SimilarTicket{Summary: c.summary, Resolution: c.solution})
	}
	return out, nil
}

// ResolutionTimeSamples returns resolution hours for tickets similar to the
// conversation. Unresolved tickets contribute a priority-based estimate.
func (s *SQLStore) ResolutionTimeSamples(ctx context.Context, conversation string, limit int) ([]float64, error) {
	ranked, err := s.rankSimilar(ctx, conversation, limit)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(ranked))
	for _, c := range ranked {
		if h, ok := c.ticket.ResolutionHours(); ok {
			out = append(out, h)
			continue
		}
		out = append(out, priorityHours(c.ticket.Priority))
	}
	return out, nil
}

func (s *SQLStore) rankSimilar(ctx context.Context, conversation string, limit int) ([]candidate, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := s.dialect.rebind(`
		SELECT summary, solution, priority, resolution_status, date_of_resolution, created_at
		FROM tickets
		WHERE summary <> ''
		ORDER BY updated_at DESC
		LIMIT ?`)

	rows, err := s.db.QueryContext(ctx, query, similarScanLimit)
	if err != nil {
		metrics.RecordStoreError("similar_tickets")
		return nil, fmt.Errorf("query similar tickets: %w", err)
	}
	defer rows.Close()

	var candidates []candidate
	for rows.Next() {
		var (
			c          candidate
			resolvedAt sql.NullInt64
			createdAt  int64
		)
		if err := rows.Scan(&c.summary, &c.solution, &c.ticket.Priority,
			&c.ticket.ResolutionStatus, &resolvedAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan similar ticket: %w", err)
		}
		if resolvedAt.Valid {
			at := time.Unix(resolvedAt.Int64, 0)
			c.ticket.DateOfResolution = &at
		}
		c.ticket.CreatedAt = time.Unix(createdAt, 0)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similar tickets: %w", err)
	}
	return rankByOverlap(conversation, candidates, limit), nil
}

func marshalList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
