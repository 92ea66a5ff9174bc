// Package wizard runs the per-user intake conversations: it loads the stored
// workflow state, validates each inbound event against the current step,
// persists the next state and emits the next prompt.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dwizi/intakebot/internal/catalog"
	"github.com/dwizi/intakebot/internal/intakeerr"
	"github.com/dwizi/intakebot/internal/prompts"
	"github.com/dwizi/intakebot/internal/store"
	"github.com/dwizi/intakebot/internal/workflow"
)

const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
	OutcomeAborted   = "aborted"
)

type Store interface {
	GetWorkflowState(ctx context.Context, userID int64) (workflow.State, error)
	PutWorkflowState(ctx context.Context, state workflow.State) error
	DeleteWorkflowState(ctx context.Context, userID int64) error
	ListDevicesByUser(ctx context.Context, userID int64) ([]store.Device, error)
	CreateDevice(ctx context.Context, input store.CreateDeviceInput) (store.Device, error)
	LookupDevice(ctx context.Context, id int64) (store.Device, error)
	ListBoards(ctx context.Context) ([]store.Board, error)
	LookupBoard(ctx context.Context, id int64) (store.Board, error)
	ListContributors(ctx context.Context) ([]store.Contributor, error)
	LookupContributor(ctx context.Context, accountID string) (store.Contributor, error)
	ListLinks(ctx context.Context) ([]store.Link, error)
	ListAppVersions(ctx context.Context) ([]string, error)
	AppendAppVersion(ctx context.Context, version string) (bool, error)
}

type Messenger interface {
	Send(ctx context.Context, chatID int64, prompt prompts.Prompt) (int64, error)
	ClearKeyboard(ctx context.Context, chatID, messageID int64) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

type Stager interface {
	Stage(ctx context.Context, fileID string) (string, error)
	Forward(ctx context.Context, issueKey, localPath string) error
	Discard(paths []string)
}

type TicketCreator interface {
	Create(ctx context.Context, state workflow.State) (string, error)
}

type IssueLinker interface {
	BrowseURL(issueKey string) string
}

type CatalogSource interface {
	Get() catalog.Catalog
}

// Observer receives flow lifecycle signals, typically for metrics.
type Observer interface {
	FlowStarted(flow workflow.FlowKind)
	FlowFinished(flow workflow.FlowKind, outcome string)
	StepHandled(step workflow.Step, outcome string)
	AttachmentHandled(operation string, ok bool)
}

type Dependencies struct {
	Store     Store
	Messenger Messenger
	Media     Stager
	Tickets   TicketCreator
	Links     IssueLinker
	Catalog   CatalogSource
	Observer  Observer
	Logger    *slog.Logger
}

type Engine struct {
	store     Store
	messenger Messenger
	media     Stager
	tickets   TicketCreator
	links     IssueLinker
	catalog   CatalogSource
	observer  Observer
	logger    *slog.Logger
	handlers  map[workflow.Step]stepHandler
}

// turn carries one event through a step handler.
type turn struct {
	event Event
	state workflow.State
}

func New(deps Dependencies) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	observer := deps.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	catalogs := deps.Catalog
	if catalogs == nil {
		catalogs = catalog.NewHolder(catalog.Default())
	}
	engine := &Engine{
		store:     deps.Store,
		messenger: deps.Messenger,
		media:     deps.Media,
		tickets:   deps.Tickets,
		links:     deps.Links,
		catalog:   catalogs,
		observer:  observer,
		logger:    logger.With("component", "wizard"),
	}
	engine.handlers = engine.buildHandlers()
	return engine
}

// Handle processes one event. Events of the same user must not be handled
// concurrently; the dispatcher guarantees that.
func (e *Engine) Handle(ctx context.Context, event Event) error {
	switch event.Command {
	case "":
		return e.handleStep(ctx, event)
	case CommandStop:
		return e.stop(ctx, event)
	case CommandBug:
		return e.start(ctx, event, workflow.FlowBugReport)
	case CommandTask:
		return e.start(ctx, event, workflow.FlowTaskCreation)
	case CommandLinks:
		return e.showLinks(ctx, event)
	case CommandRemove:
		_, err := e.messenger.Send(ctx, event.ChatID, prompts.KeyboardRemoved())
		return err
	default:
		return e.handleStep(ctx, event)
	}
}

func (e *Engine) start(ctx context.Context, event Event, flow workflow.FlowKind) error {
	existing, found, err := e.loadState(ctx, event.UserID)
	if err != nil {
		return e.failWithoutState(ctx, event, err)
	}
	if found && existing.Active() && existing.Consistent() {
		e.logger.Info("flow start refused, another flow is active", "user_id", event.UserID, "active_flow", existing.Flow, "step", existing.Step)
		_, err := e.messenger.Send(ctx, event.UserID, prompts.AlreadyActive())
		return err
	}
	if found {
		e.logger.Warn("clearing stale workflow state", "user_id", event.UserID, "flow", existing.Flow, "step", existing.Step)
		e.media.Discard(existing.Files)
		if err := e.store.DeleteWorkflowState(ctx, event.UserID); err != nil {
			return e.failWithoutState(ctx, event, err)
		}
	}

	t := &turn{
		event: event,
		state: workflow.State{
			UserID:       event.UserID,
			Flow:         flow,
			OriginChatID: event.ChatID,
			ChannelName:  channelName(event),
			Username:     strings.TrimSpace(event.Username),
			FirstName:    strings.TrimSpace(event.FirstName),
		},
	}

	switch flow {
	case workflow.FlowBugReport:
		err = e.advance(ctx, t, workflow.StepBugDescription, prompts.BugDescription())
	case workflow.FlowTaskCreation:
		boards, listErr := e.store.ListBoards(ctx)
		if listErr != nil {
			return e.fail(ctx, t, fmt.Errorf("list boards: %w", listErr))
		}
		if len(boards) == 0 {
			e.logger.Warn("task flow not started, board catalog is empty", "user_id", event.UserID)
			_, err := e.messenger.Send(ctx, event.UserID, prompts.NoBoards())
			return err
		}
		err = e.advance(ctx, t, workflow.StepTaskBoard, prompts.BoardSelect(boards))
	}
	if err != nil {
		return e.fail(ctx, t, err)
	}
	e.observer.FlowStarted(flow)
	e.logger.Info("flow started", "user_id", event.UserID, "flow", flow, "channel", t.state.ChannelName)
	return nil
}

func (e *Engine) stop(ctx context.Context, event Event) error {
	existing, found, err := e.loadState(ctx, event.UserID)
	if err != nil {
		e.logger.Error("load state for stop failed", "user_id", event.UserID, "error", err)
	}
	if found {
		e.media.Discard(existing.Files)
		if existing.PromptMessageID != 0 {
			e.clearKeyboard(ctx, event.UserID, existing.PromptMessageID)
		}
	}
	if err := e.store.DeleteWorkflowState(ctx, event.UserID); err != nil {
		return e.failWithoutState(ctx, event, err)
	}
	if found && existing.Active() {
		e.observer.FlowFinished(existing.Flow, OutcomeCancelled)
		e.logger.Info("flow cancelled", "user_id", event.UserID, "flow", existing.Flow, "step", existing.Step)
	}
	_, err = e.messenger.Send(ctx, event.UserID, prompts.Stopped())
	return err
}

func (e *Engine) showLinks(ctx context.Context, event Event) error {
	links, err := e.store.ListLinks(ctx)
	if err != nil {
		e.logger.Error("list links failed", "error", err)
		_, sendErr := e.messenger.Send(ctx, event.ChatID, prompts.GenericFailure())
		return errors.Join(err, sendErr)
	}
	_, err = e.messenger.Send(ctx, event.ChatID, prompts.Links(links))
	return err
}

func (e *Engine) handleStep(ctx context.Context, event Event) error {
	notice := ""
	if event.IsCallback() {
		defer func() { e.answerCallback(ctx, event, notice) }()
	}

	state, found, err := e.loadState(ctx, event.UserID)
	if err != nil {
		return e.failWithoutState(ctx, event, err)
	}
	if !found || !state.Active() {
		return nil
	}
	if !state.Consistent() {
		e.logger.Warn("dropping inconsistent workflow state", "user_id", event.UserID, "flow", state.Flow, "step", state.Step)
		e.media.Discard(state.Files)
		return e.store.DeleteWorkflowState(ctx, event.UserID)
	}
	if event.ChatID != event.UserID {
		e.observer.StepHandled(state.Step, "dropped")
		return nil
	}
	if event.IsCallback() && accepts[state.Step]&ShapeCallback != 0 && event.MessageID != state.PromptMessageID {
		notice = "This button is no longer active."
		e.observer.StepHandled(state.Step, "stale")
		e.logger.Info("stale button ignored", "user_id", event.UserID, "step", state.Step, "message_id", event.MessageID)
		return nil
	}

	t := &turn{event: event, state: state}
	shape := event.Shape()
	if accepts[state.Step]&shape == 0 || (shape == ShapeText && strings.TrimSpace(event.Text) == "") {
		e.observer.StepHandled(state.Step, "reprompted")
		if err := e.reprompt(ctx, t, hintFor(accepts[state.Step])); err != nil {
			return e.fail(ctx, t, err)
		}
		return nil
	}
	if event.IsCallback() {
		e.clearKeyboard(ctx, event.ChatID, event.MessageID)
		t.state.PromptMessageID = 0
	}

	handler, ok := e.handlers[state.Step]
	if !ok {
		return e.fail(ctx, t, fmt.Errorf("no handler for step %q", state.Step))
	}
	if err := handler(ctx, t); err != nil {
		e.observer.StepHandled(state.Step, OutcomeFailed)
		return e.fail(ctx, t, err)
	}
	e.observer.StepHandled(state.Step, "handled")
	return nil
}

// advance moves the state to next, persists it and shows the prompt.
func (e *Engine) advance(ctx context.Context, t *turn, next workflow.Step, prompt prompts.Prompt) error {
	if !allowed(t.state.Step, next) {
		return fmt.Errorf("illegal transition %q -> %q", t.state.Step, next)
	}
	t.state.Step = next
	t.state.PromptMessageID = 0
	if err := e.store.PutWorkflowState(ctx, t.state); err != nil {
		return err
	}
	return e.show(ctx, t, prompt)
}

// show sends a prompt to the user's private chat. Prompts with buttons are
// recorded so that presses on older keyboards can be recognised as stale.
func (e *Engine) show(ctx context.Context, t *turn, prompt prompts.Prompt) error {
	messageID, err := e.messenger.Send(ctx, t.state.UserID, prompt)
	if err != nil {
		return fmt.Errorf("send prompt: %w", err)
	}
	if !prompt.HasButtons() {
		return nil
	}
	t.state.PromptMessageID = messageID
	return e.store.PutWorkflowState(ctx, t.state)
}

// reprompt shows the current step's prompt again with a hint in front of it.
func (e *Engine) reprompt(ctx context.Context, t *turn, hint string) error {
	e.logger.Debug("reprompting", "user_id", t.state.UserID, "step", t.state.Step, "error", fmt.Errorf("%w: %s", intakeerr.ErrValidation, hint))
	prompt, err := e.promptFor(ctx, t.state)
	if err != nil {
		return err
	}
	if previous := t.state.PromptMessageID; previous != 0 && prompt.HasButtons() {
		e.clearKeyboard(ctx, t.state.UserID, previous)
		t.state.PromptMessageID = 0
	}
	return e.show(ctx, t, prompts.Retry(hint, prompt))
}

func (e *Engine) promptFor(ctx context.Context, state workflow.State) (prompts.Prompt, error) {
	switch state.Step {
	case workflow.StepBugDescription:
		return prompts.BugDescription(), nil
	case workflow.StepBugDevice:
		devices, err := e.store.ListDevicesByUser(ctx, state.UserID)
		if err != nil {
			return prompts.Prompt{}, fmt.Errorf("list devices: %w", err)
		}
		return prompts.DeviceSelect(devices), nil
	case workflow.StepBugNewDeviceName:
		return prompts.NewDeviceName(), nil
	case workflow.StepBugNewDeviceOS:
		return prompts.NewDeviceOS(e.catalog.Get().OperatingSystems), nil
	case workflow.StepBugNewDeviceOSVersion:
		return prompts.NewDeviceOSVersion(), nil
	case workflow.StepBugAppVersion:
		versions, err := e.store.ListAppVersions(ctx)
		if err != nil {
			return prompts.Prompt{}, fmt.Errorf("list app versions: %w", err)
		}
		return prompts.AppVersion(versions, false), nil
	case workflow.StepBugNewAppVersion:
		return prompts.NewAppVersion(), nil
	case workflow.StepBugAttachments, workflow.StepTaskAttachments:
		return prompts.Attachments(state.Flow), nil
	case workflow.StepBugUploadMore, workflow.StepTaskUploadMore:
		return prompts.UploadMore(), nil
	case workflow.StepBugFinalize, workflow.StepTaskFinalize:
		return prompts.TicketFailed(""), nil
	case workflow.StepTaskBoard:
		boards, err := e.store.ListBoards(ctx)
		if err != nil {
			return prompts.Prompt{}, fmt.Errorf("list boards: %w", err)
		}
		return prompts.BoardSelect(boards), nil
	case workflow.StepTaskEpic:
		board, err := e.store.LookupBoard(ctx, state.BoardID)
		if err != nil {
			return prompts.Prompt{}, fmt.Errorf("lookup board: %w", err)
		}
		return prompts.EpicSelect(board.Epics), nil
	case workflow.StepTaskTitle:
		return prompts.TaskTitle(), nil
	case workflow.StepTaskDescription:
		return prompts.TaskDescription(), nil
	case workflow.StepTaskAssignee:
		contributors, err := e.store.ListContributors(ctx)
		if err != nil {
			return prompts.Prompt{}, fmt.Errorf("list contributors: %w", err)
		}
		return prompts.AssigneeSelect(contributors), nil
	default:
		return prompts.Prompt{}, fmt.Errorf("no prompt for step %q", state.Step)
	}
}

// abort ends a flow that cannot continue, with a specific message instead of
// the generic failure.
func (e *Engine) abort(ctx context.Context, t *turn, prompt prompts.Prompt) error {
	e.media.Discard(t.state.Files)
	if err := e.store.DeleteWorkflowState(ctx, t.state.UserID); err != nil {
		return err
	}
	e.observer.FlowFinished(t.state.Flow, OutcomeAborted)
	_, err := e.messenger.Send(ctx, t.state.UserID, prompt)
	return err
}

// fail logs the error, tells the user and drops the flow.
func (e *Engine) fail(ctx context.Context, t *turn, cause error) error {
	e.logger.Error(
		"workflow step failed",
		"user_id", t.state.UserID,
		"flow", t.state.Flow,
		"step", t.state.Step,
		"event_id", t.event.ID,
		"error", cause,
	)
	e.media.Discard(t.state.Files)
	if err := e.store.DeleteWorkflowState(ctx, t.state.UserID); err != nil {
		e.logger.Error("delete workflow state after failure failed", "user_id", t.state.UserID, "error", err)
	}
	if t.state.Flow != workflow.FlowNone {
		e.observer.FlowFinished(t.state.Flow, OutcomeFailed)
	}
	if _, err := e.messenger.Send(ctx, t.state.UserID, prompts.GenericFailure()); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (e *Engine) failWithoutState(ctx context.Context, event Event, cause error) error {
	e.logger.Error("workflow state unavailable", "user_id", event.UserID, "event_id", event.ID, "error", cause)
	if _, err := e.messenger.Send(ctx, event.UserID, prompts.GenericFailure()); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (e *Engine) loadState(ctx context.Context, userID int64) (workflow.State, bool, error) {
	state, err := e.store.GetWorkflowState(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrStateNotFound) {
			return workflow.State{}, false, nil
		}
		return workflow.State{}, false, err
	}
	return state, true, nil
}

func (e *Engine) clearKeyboard(ctx context.Context, chatID, messageID int64) {
	if messageID == 0 {
		return
	}
	if err := e.messenger.ClearKeyboard(ctx, chatID, messageID); err != nil {
		e.logger.Warn("clear keyboard failed", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}

func (e *Engine) answerCallback(ctx context.Context, event Event, text string) {
	if err := e.messenger.AnswerCallback(ctx, event.CallbackID, text); err != nil {
		e.logger.Warn("answer callback failed", "callback_id", event.CallbackID, "error", err)
	}
}

// transient sends a short status message and returns a func that removes it.
func (e *Engine) transient(ctx context.Context, userID int64, prompt prompts.Prompt) func() {
	messageID, err := e.messenger.Send(ctx, userID, prompt)
	if err != nil {
		e.logger.Warn("send status message failed", "user_id", userID, "error", err)
		return func() {}
	}
	return func() {
		if err := e.messenger.DeleteMessage(ctx, userID, messageID); err != nil {
			e.logger.Warn("delete status message failed", "user_id", userID, "message_id", messageID, "error", err)
		}
	}
}

type noopObserver struct{}

func (noopObserver) FlowStarted(workflow.FlowKind) {}
func (noopObserver) FlowFinished(workflow.FlowKind, string) {}
func (noopObserver) StepHandled(workflow.Step, string) {}
func (noopObserver) AttachmentHandled(operation string, ok bool) {}
