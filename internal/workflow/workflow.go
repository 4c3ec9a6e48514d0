// Package workflow runs one request end to end: guardrail, knowledge sync,
// routing, duplicate gate and the bounded generate/review loop.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pders01/trace/internal/config"
	"github.com/pders01/trace/internal/generation"
	"github.com/pders01/trace/internal/llm"
	"github.com/pders01/trace/internal/models"
)

// State names a step of the orchestrator state machine
type State string

const (
	StateIdle        State = "idle"
	StateSyncing     State = "syncing"
	StateClassifying State = "classifying"
	StateResearch    State = "research"
	StateSplitting   State = "splitting"
	StateDuplicate   State = "duplicate_check"
	StateGenerating  State = "generating"
	StateReviewing   State = "reviewing"
	StateSaving      State = "saving"
	StateDone        State = "done"
)

// Event is one state transition, reported to Orchestrator.Events
type Event struct {
	State   State
	Attempt int
	Detail  string
}

type Syncer interface {
	Synchronize(ctx context.Context) (models.SyncReport, error)
}

type Researcher interface {
	Ask(ctx context.Context, query string) (string, error)
	Answer(ctx context.Context, question string) (string, error)
	FindDuplicate(ctx context.Context, scenario models.Scenario) (*models.LegacyReference, error)
}

type Writer interface {
	Write(ctx context.Context, task models.Task, knowledge string, rev *generation.Revision) (models.Draft, error)
}

type Reviewer interface {
	Review(ctx context.Context, task models.Task, knowledge string, d models.Draft) (models.Verdict, error)
}

type Saver interface {
	Save(ctx context.Context, d models.Draft) (models.Artifact, error)
}

// Orchestrator owns one run at a time. Syncer and Exporter are optional.
type Orchestrator struct {
	Config    *config.Config
	Syncer    Syncer
	Retrieval Researcher
	Manager   llm.Completer
	Generator Writer
	Reviewer  Reviewer
	Exporter  Saver
	Events    func(Event)
	Logger    *slog.Logger
}

// loopState is carried from one generate/review attempt to the next
type loopState struct {
	attempt      int
	lastDraft    models.Draft
	lastFeedback *models.Verdict
	lastErr      error
}

// Run processes one free-text input. Recoverable failures end in a result
// variant; the returned error is reserved for cancellation and for a
// completed draft that could not be saved.
func (o *Orchestrator) Run(ctx context.Context, input string) (models.WorkflowResult, error) {
	result := models.WorkflowResult{RunID: uuid.NewString()}
	log := o.log().With("run", result.RunID)

	o.emit(Event{State: StateIdle})
	if err := Guardrail(input, o.Config); err != nil {
		log.Info("input rejected", "reason", err)
		result.Outcome = models.OutcomeRejected
		result.Reason = err.Error()
		return result, nil
	}

	if o.Syncer != nil {
		o.emit(Event{State: StateSyncing})
		report, err := o.Syncer.Synchronize(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			// retrieval degrades on its own when the store is unusable
			log.Warn("knowledge sync failed, continuing with existing index", "error", err)
		}
		result.Sync = &report
	}

	o.emit(Event{State: StateClassifying})
	if Classify(input, o.Config) == IntentQuestion {
		return o.research(ctx, input, result)
	}

	o.emit(Event{State: StateSplitting})
	task, err := SplitInput(ctx, o.Manager, input)
	if err != nil {
		return result, err
	}
	log.Info("input analyzed", "context_chars", len(task.Context), "scenarios", len(task.Scenarios))

	for _, s := range task.Scenarios {
		o.emit(Event{State: StateDuplicate, Detail: s.Title})
		ref, err := o.Retrieval.FindDuplicate(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			log.Warn("duplicate check failed, treating scenario as new", "scenario", s.Index, "error", err)
			continue
		}
		if ref != nil {
			log.Info("duplicate found", "scenario", s.Index, "legacy_id", ref.ID)
			result.Outcome = models.OutcomeDuplicate
			result.Duplicate = ref
			o.emit(Event{State: StateDone, Detail: string(result.Outcome)})
			return result, nil
		}
	}

	knowledge, err := o.knowledge(ctx, task)
	if err != nil {
		return result, err
	}
	return o.loop(ctx, task, knowledge, result)
}

func (o *Orchestrator) research(ctx context.Context, question string, result models.WorkflowResult) (models.WorkflowResult, error) {
	o.emit(Event{State: StateResearch})
	answer, err := o.Retrieval.Answer(ctx, question)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		// fall back to the retrieved passages themselves
		o.log().Warn("answer completion failed, returning retrieved context", "error", err)
		answer, err = o.Retrieval.Ask(ctx, question)
		if err != nil {
			return result, err
		}
	}
	result.Outcome = models.OutcomeAnswered
	result.Answer = answer
	o.emit(Event{State: StateDone, Detail: string(result.Outcome)})
	return result, nil
}

// knowledge assembles the user story context with the rules found for it
func (o *Orchestrator) knowledge(ctx context.Context, task models.Task) (string, error) {
	rules, err := o.Retrieval.Ask(ctx, "Find business rules for: "+task.Context)
	if err != nil {
		return "", fmt.Errorf("failed to gather business rules: %w", err)
	}
	return fmt.Sprintf("USER STORY CONTEXT:\n%s\n\nDATABASE RULES:\n%s", task.Context, rules), nil
}

func (o *Orchestrator) loop(ctx context.Context, task models.Task, knowledge string, result models.WorkflowResult) (models.WorkflowResult, error) {
	log := o.log().With("run", result.RunID)
	var st loopState

	for st.attempt < o.Config.Workflow.MaxAttempts {
		st.attempt++
		result.Attempts = st.attempt

		var rev *generation.Revision
		if st.lastFeedback != nil {
			rev = &generation.Revision{Previous: st.lastDraft, Verdict: *st.lastFeedback}
		}

		o.emit(Event{State: StateGenerating, Attempt: st.attempt})
		d, err := o.Generator.Write(ctx, task, knowledge, rev)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			if !errors.Is(err, llm.ErrMalformedOutput) {
				log.Warn("generation failed", "attempt", st.attempt, "error", err)
				st.lastErr = err
				continue
			}
			log.Warn("draft not in the expected format", "attempt", st.attempt, "error", err)
			if rev != nil && rev.Previous.Parsed() {
				// the previous draft came back unchanged; its verdict stands
				o.emit(Event{State: StateReviewing, Attempt: st.attempt})
				log.Info("draft rejected", "attempt", st.attempt, "issues", len(rev.Verdict.Issues), "carried", true)
				continue
			}
		}
		st.lastDraft = d

		o.emit(Event{State: StateReviewing, Attempt: st.attempt})
		verdict, err := o.Reviewer.Review(ctx, task, knowledge, d)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			// counts as a rejection; the previous feedback still stands
			log.Warn("review failed", "attempt", st.attempt, "error", err)
			st.lastErr = err
			continue
		}
		if verdict.Approved() {
			log.Info("draft approved", "attempt", st.attempt)
			return o.complete(ctx, d, result)
		}

		log.Info("draft rejected", "attempt", st.attempt, "issues", len(verdict.Issues))
		st.lastFeedback = &verdict
		st.lastErr = nil
	}

	result.Outcome = models.OutcomeExhausted
	if st.lastDraft.Parsed() || st.lastDraft.Raw != "" {
		d := st.lastDraft
		result.Draft = &d
	}
	switch {
	case st.lastErr != nil:
		result.Reason = st.lastErr.Error()
	case st.lastFeedback != nil:
		result.Reason = st.lastFeedback.Feedback
	}
	o.emit(Event{State: StateDone, Detail: string(result.Outcome)})
	return result, nil
}

func (o *Orchestrator) complete(ctx context.Context, d models.Draft, result models.WorkflowResult) (models.WorkflowResult, error) {
	result.Outcome = models.OutcomeCompleted
	result.Draft = &d
	if o.Exporter != nil {
		o.emit(Event{State: StateSaving, Attempt: result.Attempts})
		artifact, err := o.Exporter.Save(ctx, d)
		if err != nil {
			return result, fmt.Errorf("failed to save test cases: %w", err)
		}
		result.Artifact = &artifact
	}
	o.emit(Event{State: StateDone, Detail: string(result.Outcome)})
	return result, nil
}

func (o *Orchestrator) emit(e Event) {
	if o.Events != nil {
		o.Events(e)
	}
}

func (o *Orchestrator) log() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}
