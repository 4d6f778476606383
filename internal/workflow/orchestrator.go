// Package workflow runs the per-message support conversation: intent
// classification, path selection, the stage pipeline, reply composition and
// ticket persistence.
package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/supportdesk/internal/domain"
	"github.com/ashureev/supportdesk/internal/metrics"
	"github.com/ashureev/supportdesk/internal/session"
	"github.com/ashureev/supportdesk/internal/store"
)

// ApologyReply is sent when the workflow itself fails.
const ApologyReply = "I apologize, but I encountered an error processing your request. Please try again or contact our technical support team."

const defaultPersistTimeout = 10 * time.Second

// Classifier labels an inbound message.
type Classifier interface {
	Classify(ctx context.Context, message string) domain.Classification
}

// Responder writes replies for the paths that skip the pipeline.
type Responder interface {
	CasualReply(ctx context.Context, intent domain.Intent, message string, history []domain.Message) string
	ProbingReply(ctx context.Context, message string, history []domain.Message) string
}

// TicketStore persists tickets and their status.
type TicketStore interface {
	SaveTicket(ctx context.Context, ticket *domain.Ticket) error
	UpdateTicketStatus(ctx context.Context, ticketID, status string) error
}

// Deps are the collaborators of an Orchestrator. Tickets may be nil.
type Deps struct {
	Classifier Classifier
	Responder  Responder
	Stages     Stages
	Tickets    TicketStore
	Logger     *slog.Logger
}

// Options tune the workflow.
type Options struct {
	// PersistTimeout bounds the ticket save after each pipeline run.
	PersistTimeout time.Duration
	// IncrementalSummary folds new messages into the previous summary
	// instead of summarizing the whole history each time.
	IncrementalSummary bool
}

// Orchestrator handles inbound channel requests for one session at a time.
type Orchestrator struct {
	classifier Classifier
	responder  Responder
	stages     Stages
	tickets    TicketStore
	logger     *slog.Logger
	opts       Options
	now        func() time.Time
}

// New creates an orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = defaultPersistTimeout
	}
	return &Orchestrator{
		classifier: deps.Classifier,
		responder:  deps.Responder,
		stages:     deps.Stages,
		tickets:    deps.Tickets,
		logger:     logger,
		opts:       opts,
		now:        time.Now,
	}
}

// SendInit emits the current session snapshot.
func (o *Orchestrator) SendInit(ctx context.Context, entry *session.Entry, out Emitter) error {
	return out.Emit(ctx, InitEvent{Type: EventInit, Data: entry.Snapshot()})
}

// HandleMessage runs the workflow for one user message. The session entry is
// locked for the whole run. The returned error is the first emit failure;
// the session is updated regardless.
func (o *Orchestrator) HandleMessage(ctx context.Context, entry *session.Entry, content string, out Emitter) error {
	entry.Lock()
	defer entry.Unlock()
	s := entry.Session()

	em := &recordingEmitter{out: out, logger: o.logger}

	received := o.now()
	timestamp := received.Format(domain.TimestampLayout)
	s.Append(domain.NewMessage(domain.RoleUser, content, received))
	o.logger.Info("Received user message", "client_id", s.ClientID, "ticket_id", s.TicketID)
	em.emit(ctx, MessageReceivedEvent{Type: EventMessageReceived, Timestamp: timestamp})

	reply, ranPipeline := o.respondSafely(ctx, s, content, em)

	replied := o.now()
	s.Append(domain.NewMessage(domain.RoleAssistant, reply, replied))
	em.emit(ctx, MessageEvent{
		Type:      EventMessage,
		Role:      domain.RoleAssistant,
		Content:   reply,
		Timestamp: replied.Format(domain.TimestampLayout),
	})

	if ranPipeline {
		o.persist(ctx, s, timestamp)
	}
	return em.err
}

// HandleStatusUpdate applies an update_status request. With withDB unset
// only the client view changes and the result is always successful.
func (o *Orchestrator) HandleStatusUpdate(ctx context.Context, entry *session.Entry, status string, withDB bool, out Emitter) error {
	success := true
	if withDB {
		ticketID := entry.Snapshot().TicketID
		if o.tickets == nil {
			success = false
		} else if err := o.tickets.UpdateTicketStatus(ctx, ticketID, status); err != nil {
			o.logger.Warn("Ticket status update failed",
				"ticket_id", ticketID,
				"status", status,
				"error", err)
			success = false
		}
	}
	return out.Emit(ctx, StatusUpdateResultEvent{Type: EventStatusUpdateResult, Success: success, Status: status})
}

// respondSafely converts any workflow panic into the apology reply.
func (o *Orchestrator) respondSafely(ctx context.Context, s *domain.Session, content string, em *recordingEmitter) (reply string, ranPipeline bool) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Workflow failed", "ticket_id", s.TicketID, "panic", r)
			reply, ranPipeline = ApologyReply, false
		}
	}()

	classification := o.classifier.Classify(ctx, content)
	path := SelectPath(classification)
	metrics.RecordIntent(string(classification.Intent))
	metrics.RecordPath(string(path))
	o.logger.Info("Workflow path selected",
		"ticket_id", s.TicketID,
		"intent", classification.Intent,
		"confidence", classification.Confidence,
		"path", path)

	em.emit(ctx, TypingEvent{Type: EventTypingIndicator, IsTyping: true})
	defer em.emit(ctx, TypingEvent{Type: EventTypingIndicator, IsTyping: false})

	switch path {
	case PathGreeting, PathFarewell:
		return o.responder.CasualReply(ctx, classification.Intent, content, s.ConversationHistory), false
	case PathPipeline:
		return o.runPipeline(ctx, s, em), true
	default:
		return o.responder.ProbingReply(ctx, content, s.ConversationHistory), false
	}
}

func (o *Orchestrator) persist(ctx context.Context, s *domain.Session, timestamp string) {
	if o.tickets == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.PersistTimeout)
	defer cancel()

	if err := o.tickets.SaveTicket(ctx, store.NewTicket(s.Snapshot(), timestamp)); err != nil {
		o.logger.Error("Failed to save ticket", "ticket_id", s.TicketID, "error", err)
		return
	}
	o.logger.Info("Ticket saved", "ticket_id", s.TicketID)
}

// recordingEmitter keeps emitting after a failure so the session stays
// consistent, and remembers the first error.
type recordingEmitter struct {
	out    Emitter
	logger *slog.Logger
	err    error
}

func (e *recordingEmitter) emit(ctx context.Context, event any) {
	if err := e.out.Emit(ctx, event); err != nil && e.err == nil {
		e.logger.Debug("Emit failed", "error", err)
		e.err = err
	}
}
