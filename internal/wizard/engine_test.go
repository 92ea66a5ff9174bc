package wizard

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwizi/intakebot/internal/intakeerr"
	"github.com/dwizi/intakebot/internal/prompts"
	"github.com/dwizi/intakebot/internal/store"
	"github.com/dwizi/intakebot/internal/workflow"
)

func TestStartWhileActiveIsRefused(t *testing.T) {
	h := newHarness(t)
	h.seedBoards()
	h.command(CommandBug, testUser, "")
	h.text("first report")

	h.command(CommandTask, testUser, "")

	state := h.requireStep(workflow.StepBugDevice)
	require.Equal(t, workflow.FlowBugReport, state.Flow)
	require.Equal(t, "first report", state.Description)
	require.Equal(t, prompts.AlreadyActive().Text, h.messenger.last().Prompt.Text)
}

func TestStartClearsInconsistentState(t *testing.T) {
	h := newHarness(t)
	h.seedBoards()
	require.NoError(t, h.store.PutWorkflowState(h.ctx, workflow.State{
		UserID: testUser,
		Flow:   workflow.FlowBugReport,
		Step:   workflow.StepTaskTitle,
		Files:  []string{"/staging/left-over.jpg"},
	}))

	h.command(CommandTask, testUser, "")

	state := h.requireStep(workflow.StepTaskBoard)
	require.Equal(t, workflow.FlowTaskCreation, state.Flow)
	require.Empty(t, state.Files)
	require.Equal(t, []string{"/staging/left-over.jpg"}, h.stager.discarded)
}

func TestStepEventDropsInconsistentState(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.PutWorkflowState(h.ctx, workflow.State{
		UserID: testUser,
		Flow:   workflow.FlowTaskCreation,
		Step:   workflow.StepBugDescription,
	}))

	h.text("hello")

	_, ok := h.state()
	require.False(t, ok)
	require.Empty(t, h.messenger.sent)
}

func TestStepEventWithoutFlowIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.text("hello")
	h.upload("file-a")
	h.pressOn(42, prompts.PayloadNoUpload)

	_, ok := h.state()
	require.False(t, ok)
	require.Empty(t, h.messenger.sent)
	require.Equal(t, []string{""}, h.messenger.answered)
}

func TestStopDiscardsFilesAndIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.command(CommandBug, testUser, "")
	require.NoError(t, h.store.PutWorkflowState(h.ctx, workflow.State{
		UserID:          testUser,
		Flow:            workflow.FlowBugReport,
		Step:            workflow.StepBugUploadMore,
		PromptMessageID: 77,
		Files:           []string{"/staging/a.jpg"},
	}))

	h.command(CommandStop, -100, "Backend")
	_, ok := h.state()
	require.False(t, ok)
	require.Equal(t, []string{"/staging/a.jpg"}, h.stager.discarded)
	require.Equal(t, []int64{77}, h.messenger.cleared)
	require.Equal(t, testUser, h.messenger.last().ChatID)
	require.True(t, h.messenger.last().Prompt.RemoveKeyboard)

	h.command(CommandStop, testUser, "")
	_, ok = h.state()
	require.False(t, ok)
	require.Equal(t, prompts.Stopped().Text, h.messenger.last().Prompt.Text)
	require.Len(t, h.stager.discarded, 1)
}

func TestGroupChatStepEventsAreDropped(t *testing.T) {
	h := newHarness(t)
	h.command(CommandBug, -100, "Backend")
	sent := len(h.messenger.sent)

	h.handle(Event{UserID: testUser, ChatID: -100, Text: "posted in the group"})

	state := h.requireStep(workflow.StepBugDescription)
	require.Empty(t, state.Description)
	require.Len(t, h.messenger.sent, sent)
}

func TestWrongShapeReprompts(t *testing.T) {
	h := newHarness(t)
	h.command(CommandBug, testUser, "")

	h.upload("file-a")
	h.requireStep(workflow.StepBugDescription)
	require.True(t, strings.HasPrefix(h.messenger.last().Prompt.Text, "Please reply with a text message."))
	require.Zero(t, h.stager.staged)

	h.text("   ")
	h.requireStep(workflow.StepBugDescription)

	h.handle(Event{UserID: testUser, ChatID: testUser, Command: "start"})
	h.requireStep(workflow.StepBugDescription)

	h.text("real description")
	before := h.requireStep(workflow.StepBugDevice)

	h.text("Pixel")
	after := h.requireStep(workflow.StepBugDevice)
	last := h.messenger.last()
	require.True(t, strings.HasPrefix(last.Prompt.Text, "Please choose one of the buttons below."))
	require.True(t, last.Prompt.HasButtons())
	require.Equal(t, last.MessageID, after.PromptMessageID)
	require.Contains(t, h.messenger.cleared, before.PromptMessageID)
}

func TestStaleButtonIsIgnored(t *testing.T) {
	h := newHarness(t)
	device := h.addDevice("Pixel 8")
	h.command(CommandBug, testUser, "")
	h.text("desc")
	devicePrompt := h.requireStep(workflow.StepBugDevice).PromptMessageID

	h.press(fmt.Sprintf("device_%d", device.ID))
	h.requireStep(workflow.StepBugAppVersion)
	sent := len(h.messenger.sent)

	h.pressOn(devicePrompt, fmt.Sprintf("device_%d", device.ID))

	h.requireStep(workflow.StepBugAppVersion)
	require.Len(t, h.messenger.sent, sent)
	require.Equal(t, "This button is no longer active.", h.messenger.answered[len(h.messenger.answered)-1])
	require.Contains(t, h.messenger.cleared, devicePrompt)
}

func TestDoubleTapSubmitsOnce(t *testing.T) {
	h := newHarness(t)
	h.seedBoards()
	h.command(CommandTask, testUser, "")
	h.press("board_2")
	h.press(prompts.PayloadEpicless)
	h.text("title")
	h.text("description")
	h.press("assignee_acc-1")
	attachmentsPrompt := h.requireStep(workflow.StepTaskAttachments).PromptMessageID

	h.pressOn(attachmentsPrompt, prompts.PayloadNoUpload)
	h.pressOn(attachmentsPrompt, prompts.PayloadNoUpload)

	require.Len(t, h.tickets.created, 1)
	_, ok := h.state()
	require.False(t, ok)
}

func TestStoreUnavailableSendsGenericFailure(t *testing.T) {
	h := newHarness(t)
	h.command(CommandBug, testUser, "")
	h.store.getErr = fmt.Errorf("%w: database is locked", intakeerr.ErrStoreUnavailable)

	err := h.engine.Handle(h.ctx, Event{UserID: testUser, ChatID: testUser, Text: "desc"})

	require.ErrorIs(t, err, intakeerr.ErrStoreUnavailable)
	require.Equal(t, prompts.GenericFailure().Text, h.messenger.last().Prompt.Text)
}

func TestUnexpectedErrorEndsFlow(t *testing.T) {
	h := newHarness(t)
	h.command(CommandBug, testUser, "")
	h.store.listDevicesErr = errors.New("disk I/O error")

	err := h.engine.Handle(h.ctx, Event{UserID: testUser, ChatID: testUser, Text: "desc"})

	require.Error(t, err)
	_, ok := h.state()
	require.False(t, ok)
	require.Equal(t, prompts.GenericFailure().Text, h.messenger.last().Prompt.Text)
}

func TestFlowSurvivesRestart(t *testing.T) {
	h := newHarness(t)
	device := h.addDevice("Pixel 8")
	h.command(CommandBug, -100, "Backend")
	h.text("desc")

	h.engine = h.newEngine()
	h.press(fmt.Sprintf("device_%d", device.ID))
	h.press("app_0.0.10")
	h.press(prompts.PayloadNoUpload)

	require.Len(t, h.tickets.created, 1)
	require.Equal(t, "Backend", h.tickets.created[0].ChannelName)
	require.Equal(t, "desc", h.tickets.created[0].Description)
}

func TestLinksAndRemoveCommands(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.ReplaceLinks(h.ctx, []store.Link{
		{Category: "docs", Label: "Handbook", URL: "https://example.com/handbook"},
	}))

	h.command(CommandLinks, -100, "Backend")
	last := h.messenger.last()
	require.Equal(t, int64(-100), last.ChatID)
	require.Equal(t, "https://example.com/handbook", last.Prompt.Keyboard[0][0].URL)

	h.command(CommandRemove, -100, "Backend")
	require.True(t, h.messenger.last().Prompt.RemoveKeyboard)
	_, ok := h.state()
	require.False(t, ok)
}

func TestButtonAtTextStepReprompts(t *testing.T) {
	h := newHarness(t)
	h.command(CommandBug, testUser, "")
	state := h.requireStep(workflow.StepBugDescription)
	require.Zero(t, state.PromptMessageID)
	sent := len(h.messenger.sent)

	h.pressOn(77, "device_1")

	h.requireStep(workflow.StepBugDescription)
	require.Len(t, h.messenger.sent, sent+1)
	require.True(t, strings.HasPrefix(h.messenger.last().Prompt.Text, "Please reply with a text message."))
	require.Equal(t, "", h.messenger.answered[len(h.messenger.answered)-1])
}
