package wizard

import (
	"context"

	"github.com/dwizi/intakebot/internal/workflow"
)

type stepHandler func(ctx context.Context, t *turn) error

// transitions lists every legal successor of each step. StepNone is the entry
// point of both flows and the terminal state after finalize.
var transitions = map[workflow.Step][]workflow.Step{
	workflow.StepNone: {workflow.StepBugDescription, workflow.StepTaskBoard},

	workflow.StepBugDescription:        {workflow.StepBugDevice},
	workflow.StepBugDevice:             {workflow.StepBugAppVersion, workflow.StepBugNewDeviceName},
	workflow.StepBugNewDeviceName:      {workflow.StepBugNewDeviceOS},
	workflow.StepBugNewDeviceOS:        {workflow.StepBugNewDeviceOSVersion},
	workflow.StepBugNewDeviceOSVersion: {workflow.StepBugAppVersion},
	workflow.StepBugAppVersion:         {workflow.StepBugAttachments, workflow.StepBugNewAppVersion},
	workflow.StepBugNewAppVersion:      {workflow.StepBugAttachments},
	workflow.StepBugAttachments:        {workflow.StepBugUploadMore, workflow.StepBugFinalize},
	workflow.StepBugUploadMore:         {workflow.StepBugAttachments, workflow.StepBugFinalize},
	workflow.StepBugFinalize:           {workflow.StepNone},

	workflow.StepTaskBoard:       {workflow.StepTaskEpic},
	workflow.StepTaskEpic:        {workflow.StepTaskTitle},
	workflow.StepTaskTitle:       {workflow.StepTaskDescription},
	workflow.StepTaskDescription: {workflow.StepTaskAssignee},
	workflow.StepTaskAssignee:    {workflow.StepTaskAttachments},
	workflow.StepTaskAttachments: {workflow.StepTaskUploadMore, workflow.StepTaskFinalize},
	workflow.StepTaskUploadMore:  {workflow.StepTaskAttachments, workflow.StepTaskFinalize},
	workflow.StepTaskFinalize:    {workflow.StepNone},
}

// accepts is the event shape each step consumes. Anything else re-prompts.
var accepts = map[workflow.Step]Shape{
	workflow.StepBugDescription:        ShapeText,
	workflow.StepBugDevice:             ShapeCallback,
	workflow.StepBugNewDeviceName:      ShapeText,
	workflow.StepBugNewDeviceOS:        ShapeCallback,
	workflow.StepBugNewDeviceOSVersion: ShapeText,
	workflow.StepBugAppVersion:         ShapeCallback,
	workflow.StepBugNewAppVersion:      ShapeText,
	workflow.StepBugAttachments:        ShapeMedia | ShapeCallback,
	workflow.StepBugUploadMore:         ShapeCallback,
	workflow.StepBugFinalize:           ShapeCallback,

	workflow.StepTaskBoard:       ShapeCallback,
	workflow.StepTaskEpic:        ShapeCallback,
	workflow.StepTaskTitle:       ShapeText,
	workflow.StepTaskDescription: ShapeText,
	workflow.StepTaskAssignee:    ShapeCallback,
	workflow.StepTaskAttachments: ShapeMedia | ShapeCallback,
	workflow.StepTaskUploadMore:  ShapeCallback,
	workflow.StepTaskFinalize:    ShapeCallback,
}

func allowed(from, to workflow.Step) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func (e *Engine) buildHandlers() map[workflow.Step]stepHandler {
	return map[workflow.Step]stepHandler{
		workflow.StepBugDescription:        e.bugDescription,
		workflow.StepBugDevice:             e.bugDevice,
		workflow.StepBugNewDeviceName:      e.bugNewDeviceName,
		workflow.StepBugNewDeviceOS:        e.bugNewDeviceOS,
		workflow.StepBugNewDeviceOSVersion: e.bugNewDeviceOSVersion,
		workflow.StepBugAppVersion:         e.bugAppVersion,
		workflow.StepBugNewAppVersion:      e.bugNewAppVersion,
		workflow.StepBugAttachments:        e.attachments,
		workflow.StepBugUploadMore:         e.uploadMore,
		workflow.StepBugFinalize:           e.retryFinalize,

		workflow.StepTaskBoard:       e.taskBoard,
		workflow.StepTaskEpic:        e.taskEpic,
		workflow.StepTaskTitle:       e.taskTitle,
		workflow.StepTaskDescription: e.taskDescription,
		workflow.StepTaskAssignee:    e.taskAssignee,
		workflow.StepTaskAttachments: e.attachments,
		workflow.StepTaskUploadMore:  e.uploadMore,
		workflow.StepTaskFinalize:    e.retryFinalize,
	}
}

func hintFor(shape Shape) string {
	switch {
	case shape&ShapeMedia != 0:
		return "Please upload a photo or video, or tap 'No Upload'."
	case shape == ShapeCallback:
		return "Please choose one of the buttons below."
	default:
		return "Please reply with a text message."
	}
}
