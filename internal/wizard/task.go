package wizard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dwizi/intakebot/internal/prompts"
	"github.com/dwizi/intakebot/internal/store"
	"github.com/dwizi/intakebot/internal/workflow"
)

func (e *Engine) taskBoard(ctx context.Context, t *turn) error {
	const invalid = "Board not found. Please select a valid board."
	raw, ok := strings.CutPrefix(t.event.CallbackData, prompts.PrefixBoard)
	if !ok {
		return e.reprompt(ctx, t, invalid)
	}
	boardID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return e.reprompt(ctx, t, invalid)
	}
	board, err := e.store.LookupBoard(ctx, boardID)
	if err != nil {
		if errors.Is(err, store.ErrBoardNotFound) {
			return e.reprompt(ctx, t, invalid)
		}
		return fmt.Errorf("lookup board: %w", err)
	}
	t.state.BoardID = board.ID
	t.state.ProjectKey = board.ProjectKey
	return e.advance(ctx, t, workflow.StepTaskEpic, prompts.EpicSelect(board.Epics))
}

func (e *Engine) taskEpic(ctx context.Context, t *turn) error {
	data := t.event.CallbackData
	if data == prompts.PayloadEpicless {
		t.state.Epicless = true
		t.state.EpicKey = ""
		return e.advance(ctx, t, workflow.StepTaskTitle, prompts.TaskTitle())
	}

	const invalid = "Epic not found. Please select a valid epic."
	key, ok := strings.CutPrefix(data, prompts.PrefixEpic)
	if !ok || key == "" {
		return e.reprompt(ctx, t, invalid)
	}
	board, err := e.store.LookupBoard(ctx, t.state.BoardID)
	if err != nil {
		return fmt.Errorf("lookup board: %w", err)
	}
	if !board.HasEpic(key) {
		return e.reprompt(ctx, t, invalid)
	}
	t.state.Epicless = false
	t.state.EpicKey = key
	return e.advance(ctx, t, workflow.StepTaskTitle, prompts.TaskTitle())
}

func (e *Engine) taskTitle(ctx context.Context, t *turn) error {
	t.state.Title = strings.TrimSpace(t.event.Text)
	return e.advance(ctx, t, workflow.StepTaskDescription, prompts.TaskDescription())
}

func (e *Engine) taskDescription(ctx context.Context, t *turn) error {
	contributors, err := e.store.ListContributors(ctx)
	if err != nil {
		return fmt.Errorf("list contributors: %w", err)
	}
	if len(contributors) == 0 {
		e.logger.Warn("task flow aborted, contributor catalog is empty", "user_id", t.state.UserID)
		return e.abort(ctx, t, prompts.NoAssignees())
	}
	t.state.Description = strings.TrimSpace(t.event.Text)
	return e.advance(ctx, t, workflow.StepTaskAssignee, prompts.AssigneeSelect(contributors))
}

func (e *Engine) taskAssignee(ctx context.Context, t *turn) error {
	const invalid = "Assignee not found. Please select a valid assignee."
	accountID, ok := strings.CutPrefix(t.event.CallbackData, prompts.PrefixAssignee)
	if !ok || strings.TrimSpace(accountID) == "" {
		return e.reprompt(ctx, t, invalid)
	}
	contributor, err := e.store.LookupContributor(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrContributorNotFound) {
			return e.reprompt(ctx, t, invalid)
		}
		return fmt.Errorf("lookup contributor: %w", err)
	}
	t.state.AssigneeID = contributor.AccountID
	return e.advance(ctx, t, workflow.StepTaskAttachments, prompts.Attachments(t.state.Flow))
}
