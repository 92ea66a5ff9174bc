package wizard

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dwizi/intakebot/internal/prompts"
	"github.com/dwizi/intakebot/internal/store"
	"github.com/dwizi/intakebot/internal/workflow"
)

func TestTaskCreationWithEpic(t *testing.T) {
	h := newHarness(t)
	h.seedBoards()

	h.command(CommandTask, -200, "Product")
	h.requireStep(workflow.StepTaskBoard)
	keyboard := h.messenger.last().Prompt.Keyboard
	require.Len(t, keyboard, 1)
	require.Equal(t, "board_1", keyboard[0][0].Data)

	h.press("board_1")
	state := h.requireStep(workflow.StepTaskEpic)
	require.Equal(t, "MOP", state.ProjectKey)

	h.press("epic_MOP-1")
	h.requireStep(workflow.StepTaskTitle)
	h.text("Add dark mode")
	h.requireStep(workflow.StepTaskDescription)
	h.text("All screens")
	h.requireStep(workflow.StepTaskAssignee)
	require.Equal(t, "Ada", h.messenger.last().Prompt.Keyboard[0][0].Text)

	h.press("assignee_acc-1")
	h.requireStep(workflow.StepTaskAttachments)
	h.press(prompts.PayloadNoUpload)

	_, ok := h.state()
	require.False(t, ok)
	require.Len(t, h.tickets.created, 1)
	created := h.tickets.created[0]
	require.Equal(t, workflow.FlowTaskCreation, created.Flow)
	require.Equal(t, "MOP-1", created.EpicKey)
	require.False(t, created.Epicless)
	require.Equal(t, "acc-1", created.AssigneeID)
	require.Equal(t, "Add dark mode", created.Title)
	require.Equal(t, "All screens", created.Description)
	require.Contains(t, h.messenger.last().Prompt.Text, "Task created successfully!")
}

func TestTaskCreationEpicless(t *testing.T) {
	h := newHarness(t)
	h.seedBoards()

	h.command(CommandTask, testUser, "")
	h.press("board_2")
	h.press(prompts.PayloadEpicless)
	h.text("Fix footer")
	h.text("Links are broken")
	h.press("assignee_acc-2")
	h.press(prompts.PayloadNoUpload)

	require.Len(t, h.tickets.created, 1)
	require.True(t, h.tickets.created[0].Epicless)
	require.Empty(t, h.tickets.created[0].EpicKey)
	require.Equal(t, "WEB", h.tickets.created[0].ProjectKey)
}

func TestTaskRejectsEpicFromAnotherBoard(t *testing.T) {
	h := newHarness(t)
	h.seedBoards()

	h.command(CommandTask, testUser, "")
	h.press("board_2")
	h.press("epic_MOP-1")
	h.requireStep(workflow.StepTaskEpic)

	h.press("board_1")
	h.requireStep(workflow.StepTaskEpic)

	h.press("assignee_acc-1")
	h.requireStep(workflow.StepTaskEpic)
}

func TestTaskRejectsUnknownAssignee(t *testing.T) {
	h := newHarness(t)
	h.seedBoards()

	h.command(CommandTask, testUser, "")
	h.press("board_1")
	h.press(prompts.PayloadEpicless)
	h.text("title")
	h.text("description")
	h.press("assignee_acc-404")
	h.requireStep(workflow.StepTaskAssignee)
}

func TestTaskWithoutBoardsDoesNotStart(t *testing.T) {
	h := newHarness(t)
	h.command(CommandTask, testUser, "")

	_, ok := h.state()
	require.False(t, ok)
	require.Equal(t, prompts.NoBoards().Text, h.messenger.last().Prompt.Text)
}

func TestTaskWithoutContributorsAborts(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.ReplaceBoards(h.ctx, []store.Board{{ID: 1, Name: "Mobile", ProjectKey: "MOP"}}))

	h.command(CommandTask, testUser, "")
	h.press("board_1")
	h.press(prompts.PayloadEpicless)
	h.text("title")
	h.text("description")

	_, ok := h.state()
	require.False(t, ok)
	require.Equal(t, prompts.NoAssignees().Text, h.messenger.last().Prompt.Text)
}
