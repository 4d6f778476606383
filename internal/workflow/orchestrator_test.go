package workflow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/supportdesk/internal/agent"
	"github.com/ashureev/supportdesk/internal/domain"
	"github.com/ashureev/supportdesk/internal/intent"
	"github.com/ashureev/supportdesk/internal/llm"
	"github.com/ashureev/supportdesk/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type eventRecorder struct {
	mu     sync.Mutex
	events []any
}

func (r *eventRecorder) Emit(_ context.Context, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		switch ev := e.(type) {
		case InitEvent:
			out = append(out, ev.Type)
		case MessageReceivedEvent:
			out = append(out, ev.Type)
		case TypingEvent:
			if ev.IsTyping {
				out = append(out, "typing_on")
			} else {
				out = append(out, "typing_off")
			}
		case UpdateEvent:
			out = append(out, ev.Type)
		case MessageEvent:
			out = append(out, ev.Type)
		case StatusUpdateResultEvent:
			out = append(out, ev.Type)
		}
	}
	return out
}

func (r *eventRecorder) last() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixedClassifier domain.Classification

func (c fixedClassifier) Classify(context.Context, string) domain.Classification {
	return domain.Classification(c)
}

type fakeResponder struct{}

func (fakeResponder) CasualReply(_ context.Context, i domain.Intent, _ string, _ []domain.Message) string {
	return "casual:" + string(i)
}

func (fakeResponder) ProbingReply(context.Context, string, []domain.Message) string {
	return "probing"
}

type fakeTickets struct {
	mu        sync.Mutex
	saved     []*domain.Ticket
	saveErr   error
	statusErr error
	statuses  []string
}

func (f *fakeTickets) SaveTicket(_ context.Context, t *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, t)
	return f.saveErr
}

func (f *fakeTickets) UpdateTicketStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, id+"="+status)
	return f.statusErr
}

// stageGenerator answers each pipeline prompt by matching a marker phrase.
func stageGenerator(failOn string) llm.Generator {
	return llm.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		if failOn != "" && strings.Contains(prompt, failOn) {
			return "", errors.New("model unavailable")
		}
		switch {
		case strings.Contains(prompt, "summary specialist"):
			return "Customer export job fails with error 500.", nil
		case strings.Contains(prompt, "action item specialist"):
			return "Check exporter logs\nRestart export worker", nil
		case strings.Contains(prompt, "solution specialist"):
			return "Clear the export cache and retry the job\nUpgrade the exporter to the latest patch release", nil
		case strings.Contains(prompt, "routing specialist"):
			return "Primary Team: Technical Engineering\nAdditional Teams: None", nil
		case strings.Contains(prompt, "time estimation specialist"):
			return "Estimated Resolution Time: 2-4 hours\nConfidence Level: Medium\nFactors: Known issue", nil
		}
		return "", errors.New("unexpected prompt")
	})
}

func realStages(gen llm.Generator) Stages {
	logger := discardLogger()
	return Stages{
		Summary:         agent.NewSummarizer(gen, logger),
		Actions:         agent.NewActionExtractor(gen, logger),
		Recommendations: agent.NewRecommender(gen, nil, logger),
		Routing:         agent.NewRouter(gen, logger),
		TimeEstimate:    agent.NewTimeEstimator(gen, nil, logger),
	}
}

func newEntry(t *testing.T) *session.Entry {
	t.Helper()
	return session.NewRegistry(session.Config{}, nil).GetOrCreate(context.Background(), "client-1")
}

func issueClassification() fixedClassifier {
	return fixedClassifier{Intent: domain.IntentIssue, Confidence: 0.9}
}

func TestSelectPath(t *testing.T) {
	tests := []struct {
		intent     domain.Intent
		confidence float64
		want       Path
	}{
		{domain.IntentGreeting, 0.95, PathGreeting},
		{domain.IntentGreeting, 0.5, PathProbing},
		{domain.IntentFarewell, 0.8, PathFarewell},
		{domain.IntentFarewell, 0.6, PathProbing},
		{domain.IntentCasual, 0.1, PathProbing},
		{domain.IntentIssue, 0.7, PathProbing},
		{domain.IntentIssue, 0.79, PathProbing},
		{domain.IntentIssue, 0.8, PathPipeline},
		{domain.IntentIssue, 1.0, PathPipeline},
		{domain.IntentUnknown, 0.9, PathProbing},
	}
	for _, tt := range tests {
		got := SelectPath(domain.Classification{Intent: tt.intent, Confidence: tt.confidence})
		assert.Equal(t, tt.want, got, "%s@%v", tt.intent, tt.confidence)
	}
}

func TestHandleMessagePipelineEventOrder(t *testing.T) {
	tickets := &fakeTickets{}
	o := New(Deps{
		Classifier: issueClassification(),
		Responder:  fakeResponder{},
		Stages:     realStages(stageGenerator("")),
		Tickets:    tickets,
		Logger:     discardLogger(),
	}, Options{})
	entry := newEntry(t)
	rec := &eventRecorder{}

	require.NoError(t, o.HandleMessage(context.Background(), entry, "My export job fails with error 500 every time", rec))

	assert.Equal(t, []string{
		EventMessageReceived,
		"typing_on",
		EventUpdateSummary,
		EventUpdateActions,
		EventUpdateRecommendations,
		EventUpdateRouting,
		EventUpdateTimeEstimate,
		"typing_off",
		EventMessage,
	}, rec.types())

	msg, ok := rec.last().(MessageEvent)
	require.True(t, ok)
	assert.Equal(t, domain.RoleAssistant, msg.Role)
	assert.Equal(t,
		"Thank you for your message. I recommend you: Clear the export cache and retry the job. "+
			"Additionally, you could try: Upgrade the exporter to the latest patch release. "+
			"I expect this will take approximately 2-4 hours to resolve.",
		msg.Content)

	snap := entry.Snapshot()
	assert.Len(t, snap.ConversationHistory, 2)
	assert.Equal(t, "Customer export job fails with error 500.", snap.CurrentSummary)
	assert.Equal(t, []string{"Check exporter logs", "Restart export worker"}, snap.Actions)
	assert.Equal(t, domain.TeamTechnicalEngineering, snap.Routing.PrimaryTeam)

	require.Len(t, tickets.saved, 1)
	assert.Equal(t, snap.TicketID, tickets.saved[0].TicketID)
	assert.Len(t, tickets.saved[0].Conversation, 2)
}

func TestHandleMessageGreetingSkipsPipeline(t *testing.T) {
	tickets := &fakeTickets{}
	o := New(Deps{
		Classifier: intent.NewClassifier(nil, discardLogger()),
		Responder:  fakeResponder{},
		Stages:     realStages(stageGenerator("")),
		Tickets:    tickets,
		Logger:     discardLogger(),
	}, Options{})
	entry := newEntry(t)
	rec := &eventRecorder{}

	require.NoError(t, o.HandleMessage(context.Background(), entry, "hello", rec))

	assert.Equal(t, []string{EventMessageReceived, "typing_on", "typing_off", EventMessage}, rec.types())
	msg := rec.last().(MessageEvent)
	assert.Equal(t, "casual:greeting", msg.Content)
	assert.Empty(t, tickets.saved)
	assert.Empty(t, entry.Snapshot().CurrentSummary)
}

func TestHandleMessageVagueIssueProbes(t *testing.T) {
	o := New(Deps{
		Classifier: intent.NewClassifier(nil, discardLogger()),
		Responder:  fakeResponder{},
		Stages:     realStages(stageGenerator("")),
		Logger:     discardLogger(),
	}, Options{})
	rec := &eventRecorder{}

	require.NoError(t, o.HandleMessage(context.Background(), newEntry(t), "I have an issue", rec))
	assert.Equal(t, "probing", rec.last().(MessageEvent).Content)
}

func TestRecommendationFailureIsIsolated(t *testing.T) {
	o := New(Deps{
		Classifier: issueClassification(),
		Responder:  fakeResponder{},
		Stages:     realStages(stageGenerator("solution specialist")),
		Logger:     discardLogger(),
	}, Options{})
	entry := newEntry(t)
	rec := &eventRecorder{}

	require.NoError(t, o.HandleMessage(context.Background(), entry, "My export job fails with error 500", rec))

	snap := entry.Snapshot()
	assert.Equal(t, []string{agent.FallbackRecommendation}, snap.Recommendations)
	assert.Equal(t, "Customer export job fails with error 500.", snap.CurrentSummary)
	assert.Equal(t, []string{"Check exporter logs", "Restart export worker"}, snap.Actions)
	assert.Equal(t, domain.TeamTechnicalEngineering, snap.Routing.PrimaryTeam)
	assert.Contains(t, snap.TimeEstimate, "Estimated Resolution Time: 2-4 hours")
	assert.Contains(t, rec.types(), EventUpdateTimeEstimate)
}

func TestSummaryFailureKeepsPreviousSummary(t *testing.T) {
	o := New(Deps{
		Classifier: issueClassification(),
		Responder:  fakeResponder{},
		Stages:     realStages(stageGenerator("summary specialist")),
		Logger:     discardLogger(),
	}, Options{})
	entry := newEntry(t)
	entry.Lock()
	entry.Session().CurrentSummary = "earlier summary"
	entry.Unlock()

	require.NoError(t, o.HandleMessage(context.Background(), entry, "export still failing with error 500", &eventRecorder{}))
	assert.Equal(t, "earlier summary", entry.Snapshot().CurrentSummary)
}

func TestTotalGenerationFailureStillReplies(t *testing.T) {
	failing := llm.GeneratorFunc(func(context.Context, string) (string, error) {
		return "", errors.New("down")
	})
	tickets := &fakeTickets{saveErr: errors.New("disk full")}
	o := New(Deps{
		Classifier: issueClassification(),
		Responder:  fakeResponder{},
		Stages:     realStages(failing),
		Tickets:    tickets,
		Logger:     discardLogger(),
	}, Options{})
	entry := newEntry(t)
	rec := &eventRecorder{}

	require.NoError(t, o.HandleMessage(context.Background(), entry, "export fails", rec))

	snap := entry.Snapshot()
	assert.Empty(t, snap.Actions)
	assert.Equal(t, agent.FallbackRouting(), snap.Routing)
	assert.Equal(t, agent.FallbackTimeEstimate, snap.TimeEstimate)
	assert.Equal(t,
		"Thank you for your message. I recommend you: "+agent.FallbackRecommendation,
		rec.last().(MessageEvent).Content)
	assert.Len(t, tickets.saved, 1)
}

type panickingClassifier struct{}

func (panickingClassifier) Classify(context.Context, string) domain.Classification {
	panic("classifier exploded")
}

type panickingResponder struct{ fakeResponder }

func (panickingResponder) ProbingReply(context.Context, string, []domain.Message) string {
	panic("responder exploded")
}

func TestWorkflowPanicYieldsApology(t *testing.T) {
	t.Run("before typing", func(t *testing.T) {
		o := New(Deps{Classifier: panickingClassifier{}, Responder: fakeResponder{}, Logger: discardLogger()}, Options{})
		rec := &eventRecorder{}
		require.NoError(t, o.HandleMessage(context.Background(), newEntry(t), "anything", rec))
		assert.Equal(t, []string{EventMessageReceived, EventMessage}, rec.types())
		assert.Equal(t, ApologyReply, rec.last().(MessageEvent).Content)
	})

	t.Run("typing stays paired", func(t *testing.T) {
		o := New(Deps{
			Classifier: fixedClassifier{Intent: domain.IntentCasual, Confidence: 0.9},
			Responder:  panickingResponder{},
			Logger:     discardLogger(),
		}, Options{})
		rec := &eventRecorder{}
		require.NoError(t, o.HandleMessage(context.Background(), newEntry(t), "anything", rec))
		assert.Equal(t, []string{EventMessageReceived, "typing_on", "typing_off", EventMessage}, rec.types())
		assert.Equal(t, ApologyReply, rec.last().(MessageEvent).Content)
	})
}

type fakeSummarizer struct {
	full, update int
	lastNew      string
}

func (f *fakeSummarizer) Summarize(context.Context, string) (string, error) {
	f.full++
	return "full summary", nil
}

func (f *fakeSummarizer) UpdateSummary(_ context.Context, prev, newMessages string) (string, error) {
	f.update++
	f.lastNew = newMessages
	return prev + " + update", nil
}

func TestIncrementalSummary(t *testing.T) {
	stages := realStages(stageGenerator(""))
	summarizer := &fakeSummarizer{}
	stages.Summary = summarizer
	o := New(Deps{Classifier: issueClassification(), Responder: fakeResponder{}, Stages: stages, Logger: discardLogger()},
		Options{IncrementalSummary: true})
	entry := newEntry(t)

	require.NoError(t, o.HandleMessage(context.Background(), entry, "first problem", &eventRecorder{}))
	require.NoError(t, o.HandleMessage(context.Background(), entry, "second problem", &eventRecorder{}))

	assert.Equal(t, 1, summarizer.full)
	assert.Equal(t, 1, summarizer.update)
	assert.Contains(t, summarizer.lastNew, "second problem")
	assert.NotContains(t, summarizer.lastNew, "first problem")
	assert.Equal(t, "full summary + update", entry.Snapshot().CurrentSummary)
}

func TestHandleStatusUpdate(t *testing.T) {
	entry := newEntry(t)
	ticketID := entry.Snapshot().TicketID

	tests := []struct {
		name    string
		tickets TicketStore
		withDB  bool
		want    bool
	}{
		{"view only", nil, false, true},
		{"persisted", &fakeTickets{}, true, true},
		{"store error", &fakeTickets{statusErr: errors.New("not found")}, true, false},
		{"no store", nil, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(Deps{Tickets: tt.tickets, Logger: discardLogger()}, Options{})
			rec := &eventRecorder{}
			require.NoError(t, o.HandleStatusUpdate(context.Background(), entry, domain.StatusResolved, tt.withDB, rec))
			got := rec.last().(StatusUpdateResultEvent)
			assert.Equal(t, tt.want, got.Success)
			assert.Equal(t, domain.StatusResolved, got.Status)
			if ft, ok := tt.tickets.(*fakeTickets); ok && tt.withDB {
				assert.Equal(t, []string{ticketID + "=" + domain.StatusResolved}, ft.statuses)
			}
		})
	}
}

func TestSendInit(t *testing.T) {
	o := New(Deps{Logger: discardLogger()}, Options{})
	entry := newEntry(t)
	rec := &eventRecorder{}
	require.NoError(t, o.SendInit(context.Background(), entry, rec))
	ev := rec.last().(InitEvent)
	assert.Equal(t, EventInit, ev.Type)
	assert.Equal(t, entry.Snapshot().TicketID, ev.Data.TicketID)
}

func TestComposeReply(t *testing.T) {
	assert.Equal(t,
		"Thank you for your message. I'll look into this for you and provide a solution shortly.",
		ComposeReply(nil, agent.FallbackTimeEstimate))
	assert.Equal(t,
		"Thank you for your message. I recommend you: Do it. I expect this will take approximately 1 day to resolve.",
		ComposeReply([]string{"Do it."}, "Confidence Level: Low\nEstimated Resolution Time: 1 day"))
}

func TestHandleMessageKeepsSessionAlive(t *testing.T) {
	o := New(Deps{
		Classifier: intent.NewClassifier(nil, discardLogger()),
		Responder:  fakeResponder{},
		Logger:     discardLogger(),
	}, Options{})
	reg := session.NewRegistry(session.Config{IdleTTL: 50 * time.Millisecond}, nil)
	entry := reg.GetOrCreate(context.Background(), "client-1")

	for range 10 {
		time.Sleep(20 * time.Millisecond)
		require.NoError(t, o.HandleMessage(context.Background(), entry, "hello", &eventRecorder{}))
	}

	assert.Zero(t, reg.EvictIdle())
	_, ok := reg.Get("client-1")
	assert.True(t, ok)
	assert.Len(t, entry.Snapshot().ConversationHistory, 20)
}
