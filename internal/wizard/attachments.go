package wizard

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dwizi/intakebot/internal/intakeerr"
	"github.com/dwizi/intakebot/internal/prompts"
	"github.com/dwizi/intakebot/internal/workflow"
)

const maxFailureReason = 300

func (e *Engine) attachments(ctx context.Context, t *turn) error {
	if t.event.Media == nil {
		if t.event.CallbackData != prompts.PayloadNoUpload {
			return e.reprompt(ctx, t, hintFor(accepts[t.state.Step]))
		}
		if err := e.enter(t, workflow.FinalizeStep(t.state.Flow)); err != nil {
			return err
		}
		return e.finalize(ctx, t)
	}

	done := e.transient(ctx, t.state.UserID, prompts.Uploading())
	localPath, err := e.media.Stage(ctx, t.event.Media.FileID)
	done()
	if err != nil {
		e.observer.AttachmentHandled("stage", false)
		if !errors.Is(err, intakeerr.ErrDownload) {
			return err
		}
		e.logger.Warn("attachment download failed", "user_id", t.state.UserID, "file_id", t.event.Media.FileID, "error", err)
		return e.show(ctx, t, prompts.DownloadFailed())
	}
	e.observer.AttachmentHandled("stage", true)
	t.state.Files = append(t.state.Files, localPath)
	return e.advance(ctx, t, workflow.UploadMoreStep(t.state.Flow), prompts.UploadMore())
}

func (e *Engine) uploadMore(ctx context.Context, t *turn) error {
	switch t.event.CallbackData {
	case prompts.PayloadUploadMore:
		return e.advance(ctx, t, workflow.AttachmentStep(t.state.Flow), prompts.UploadNext())
	case prompts.PayloadNoUpload:
		if err := e.enter(t, workflow.FinalizeStep(t.state.Flow)); err != nil {
			return err
		}
		return e.finalize(ctx, t)
	default:
		return e.reprompt(ctx, t, hintFor(ShapeCallback))
	}
}

func (e *Engine) retryFinalize(ctx context.Context, t *turn) error {
	if t.event.CallbackData != prompts.PayloadRetry {
		return e.reprompt(ctx, t, "")
	}
	return e.finalize(ctx, t)
}

// enter moves to next without showing a prompt.
func (e *Engine) enter(t *turn, next workflow.Step) error {
	if !allowed(t.state.Step, next) {
		return fmt.Errorf("illegal transition %q -> %q", t.state.Step, next)
	}
	t.state.Step = next
	return nil
}

// finalize creates the ticket at most once, forwards every staged file and
// reports the result. A creation failure keeps the state for a retry.
func (e *Engine) finalize(ctx context.Context, t *turn) error {
	if err := e.store.PutWorkflowState(ctx, t.state); err != nil {
		return err
	}

	if t.state.TicketKey == "" {
		done := e.transient(ctx, t.state.UserID, prompts.CreatingTicket(t.state.Flow))
		key, err := e.tickets.Create(ctx, t.state)
		done()
		if err != nil {
			if !errors.Is(err, intakeerr.ErrTicketCreation) {
				return err
			}
			e.logger.Error("ticket creation failed", "user_id", t.state.UserID, "flow", t.state.Flow, "error", err)
			return e.show(ctx, t, prompts.TicketFailed(failureReason(err)))
		}
		t.state.TicketKey = key
		if err := e.store.PutWorkflowState(ctx, t.state); err != nil {
			return err
		}
		e.logger.Info("ticket created", "user_id", t.state.UserID, "flow", t.state.Flow, "ticket_key", key)
	}

	var failed []string
	for len(t.state.Files) > 0 {
		localPath := t.state.Files[0]
		forwardErr := e.media.Forward(ctx, t.state.TicketKey, localPath)
		t.state.Files = t.state.Files[1:]
		if err := e.store.PutWorkflowState(ctx, t.state); err != nil {
			return err
		}
		e.observer.AttachmentHandled("forward", forwardErr == nil)
		if forwardErr != nil {
			e.logger.Error("attachment forward failed", "user_id", t.state.UserID, "ticket_key", t.state.TicketKey, "path", localPath, "error", forwardErr)
			failed = append(failed, filepath.Base(localPath))
		}
	}

	if _, err := e.messenger.Send(ctx, t.state.UserID, prompts.TicketCreated(t.state.Flow, e.links.BrowseURL(t.state.TicketKey))); err != nil {
		return err
	}
	if len(failed) > 0 {
		if _, err := e.messenger.Send(ctx, t.state.UserID, prompts.AttachmentsFailed(failed)); err != nil {
			e.logger.Warn("send attachment failure report failed", "user_id", t.state.UserID, "error", err)
		}
	}
	if err := e.enter(t, workflow.StepNone); err != nil {
		return err
	}
	if err := e.store.DeleteWorkflowState(ctx, t.state.UserID); err != nil {
		return err
	}
	e.observer.FlowFinished(t.state.Flow, OutcomeCompleted)
	return nil
}

func failureReason(err error) string {
	reason := strings.TrimSpace(err.Error())
	reason = strings.TrimPrefix(reason, intakeerr.ErrTicketCreation.Error()+": ")
	if len(reason) > maxFailureReason {
		reason = reason[:maxFailureReason] + "..."
	}
	return reason
}
