package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/supportdesk/internal/agent"
	"github.com/ashureev/supportdesk/internal/conversation"
	"github.com/ashureev/supportdesk/internal/domain"
	"github.com/ashureev/supportdesk/internal/metrics"
)

// FallbackPipelineReply is sent when the reply cannot be composed from the
// pipeline artifacts.
const FallbackPipelineReply = "Thank you for providing those details. I'll analyze your issue and work on a solution for you."

// Stage names used in logs and metrics.
const (
	StageSummary         = "summary"
	StageActions         = "actions"
	StageRecommendations = "recommendations"
	StageRouting         = "routing"
	StageTimeEstimate    = "time_estimate"
)

// Summarizer produces the conversation summary.
type Summarizer interface {
	Summarize(ctx context.Context, conversation string) (string, error)
	UpdateSummary(ctx context.Context, prev, newMessages string) (string, error)
}

// ActionExtractor lists action items.
type ActionExtractor interface {
	Extract(ctx context.Context, conversation, summary string) ([]string, error)
}

// Recommender proposes resolutions.
type Recommender interface {
	Recommend(ctx context.Context, conversation, summary string, actions []string) ([]string, error)
}

// Router assigns teams.
type Router interface {
	Route(ctx context.Context, conversation string, actions []string) (domain.Routing, error)
}

// TimeEstimator estimates resolution time.
type TimeEstimator interface {
	Estimate(ctx context.Context, conversation string, actions []string, routing domain.Routing) (string, error)
}

// Stages are the pipeline agents in execution order.
type Stages struct {
	Summary         Summarizer
	Actions         ActionExtractor
	Recommendations Recommender
	Routing         Router
	TimeEstimate    TimeEstimator
}

// runPipeline runs every stage in order, isolating each stage's failure
// behind its fallback, and returns the composed reply.
func (o *Orchestrator) runPipeline(ctx context.Context, s *domain.Session, em *recordingEmitter) string {
	conv := conversation.Format(s.ConversationHistory)

	o.runStage(ctx, s, StageSummary, func(ctx context.Context) error {
		summary, err := o.summarize(ctx, s, conv)
		if err != nil {
			return err
		}
		s.CurrentSummary = summary
		s.SummarizedMessages = len(s.ConversationHistory)
		return nil
	}, nil)
	em.emit(ctx, UpdateEvent{Type: EventUpdateSummary, Data: s.CurrentSummary})

	summary := s.CurrentSummary
	if strings.TrimSpace(summary) == "" {
		summary = agent.PlaceholderSummary
	}

	o.runStage(ctx, s, StageActions, func(ctx context.Context) error {
		actions, err := o.stages.Actions.Extract(ctx, conv, summary)
		if err != nil {
			return err
		}
		s.Actions = actions
		return nil
	}, func() { s.Actions = []string{} })
	em.emit(ctx, UpdateEvent{Type: EventUpdateActions, Data: s.Actions})

	o.runStage(ctx, s, StageRecommendations, func(ctx context.Context) error {
		recs, err := o.stages.Recommendations.Recommend(ctx, conv, summary, s.Actions)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return errNoRecommendations
		}
		s.Recommendations = recs
		return nil
	}, func() { s.Recommendations = agent.FallbackRecommendations() })
	em.emit(ctx, UpdateEvent{Type: EventUpdateRecommendations, Data: s.Recommendations})

	o.runStage(ctx, s, StageRouting, func(ctx context.Context) error {
		routing, err := o.stages.Routing.Route(ctx, conv, s.Actions)
		if err != nil {
			return err
		}
		s.Routing = routing
		return nil
	}, func() { s.Routing = agent.FallbackRouting() })
	em.emit(ctx, UpdateEvent{Type: EventUpdateRouting, Data: s.Routing})

	o.runStage(ctx, s, StageTimeEstimate, func(ctx context.Context) error {
		estimate, err := o.stages.TimeEstimate.Estimate(ctx, conv, s.Actions, s.Routing)
		if err != nil {
			return err
		}
		s.TimeEstimate = estimate
		return nil
	}, func() { s.TimeEstimate = agent.FallbackTimeEstimate })
	em.emit(ctx, UpdateEvent{Type: EventUpdateTimeEstimate, Data: s.TimeEstimate})

	return o.composeReplySafely(s)
}

func (o *Orchestrator) summarize(ctx context.Context, s *domain.Session, conv string) (string, error) {
	if !o.opts.IncrementalSummary || s.CurrentSummary == "" || s.SummarizedMessages <= 0 ||
		s.SummarizedMessages > len(s.ConversationHistory) {
		return o.stages.Summary.Summarize(ctx, conv)
	}
	fresh := conversation.Format(s.ConversationHistory[s.SummarizedMessages:])
	return o.stages.Summary.UpdateSummary(ctx, s.CurrentSummary, fresh)
}

// runStage executes fn, converting errors and panics into the stage's
// fallback. A nil fallback leaves the previous artifact in place.
func (o *Orchestrator) runStage(ctx context.Context, s *domain.Session, name string, fn func(context.Context) error, fallback func()) {
	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("stage panicked: %v", r)
			}
		}()
		return fn(ctx)
	}()
	d := time.Since(start)
	metrics.RecordStage(name, err != nil, d)

	if err != nil {
		o.logger.Error("Pipeline stage failed, using fallback",
			"stage", name,
			"ticket_id", s.TicketID,
			"duration", d,
			"error", err)
		if fallback != nil {
			fallback()
		}
		return
	}
	o.logger.Info("Pipeline stage completed", "stage", name, "ticket_id", s.TicketID, "duration", d)
}

func (o *Orchestrator) composeReplySafely(s *domain.Session) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Reply composition failed", "ticket_id", s.TicketID, "panic", r)
			reply = FallbackPipelineReply
		}
	}()
	return ComposeReply(s.Recommendations, s.TimeEstimate)
}

// ComposeReply builds the user-facing answer from the pipeline artifacts.
func ComposeReply(recommendations []string, timeEstimate string) string {
	parts := []string{"Thank you for your message."}
	if len(recommendations) > 0 {
		parts = append(parts, "I recommend you: "+recommendations[0])
		if len(recommendations) > 1 {
			parts = append(parts, "Additionally, you could try: "+recommendations[1])
		}
	} else {
		parts = append(parts, "I'll look into this for you and provide a solution shortly.")
	}
	if estimate, ok := agent.EstimatedResolutionTime(timeEstimate); ok {
		parts = append(parts, fmt.Sprintf("I expect this will take approximately %s to resolve.", estimate))
	}
	return strings.Join(parts, " ")
}
