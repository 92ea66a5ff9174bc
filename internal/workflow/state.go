// Package workflow defines the persisted per-user wizard state and the
// closed set of flow kinds and steps it may be in.
package workflow

import (
	"strings"
	"time"
)

type FlowKind string

const (
	FlowNone         FlowKind = ""
	FlowBugReport    FlowKind = "bug_report"
	FlowTaskCreation FlowKind = "task_creation"
)

type Step string

const (
	StepNone Step = ""

	StepBugDescription        Step = "bug_description"
	StepBugDevice             Step = "bug_device"
	StepBugNewDeviceName      Step = "bug_new_device_name"
	StepBugNewDeviceOS        Step = "bug_new_device_os"
	StepBugNewDeviceOSVersion Step = "bug_new_device_os_version"
	StepBugAppVersion         Step = "bug_app_version"
	StepBugNewAppVersion      Step = "bug_new_app_version"
	StepBugAttachments        Step = "bug_attachments"
	StepBugUploadMore         Step = "bug_upload_more"
	StepBugFinalize           Step = "bug_finalize"

	StepTaskBoard       Step = "task_board"
	StepTaskEpic        Step = "task_epic"
	StepTaskTitle       Step = "task_title"
	StepTaskDescription Step = "task_description"
	StepTaskAssignee    Step = "task_assignee"
	StepTaskAttachments Step = "task_attachments"
	StepTaskUploadMore  Step = "task_upload_more"
	StepTaskFinalize    Step = "task_finalize"
)

var bugSteps = []Step{
	StepBugDescription,
	StepBugDevice,
	StepBugNewDeviceName,
	StepBugNewDeviceOS,
	StepBugNewDeviceOSVersion,
	StepBugAppVersion,
	StepBugNewAppVersion,
	StepBugAttachments,
	StepBugUploadMore,
	StepBugFinalize,
}

var taskSteps = []Step{
	StepTaskBoard,
	StepTaskEpic,
	StepTaskTitle,
	StepTaskDescription,
	StepTaskAssignee,
	StepTaskAttachments,
	StepTaskUploadMore,
	StepTaskFinalize,
}

var stepFlows = func() map[Step]FlowKind {
	result := make(map[Step]FlowKind, len(bugSteps)+len(taskSteps))
	for _, step := range bugSteps {
		result[step] = FlowBugReport
	}
	for _, step := range taskSteps {
		result[step] = FlowTaskCreation
	}
	return result
}()

// Steps returns the ordered steps of a flow kind.
func Steps(flow FlowKind) []Step {
	switch flow {
	case FlowBugReport:
		return append([]Step(nil), bugSteps...)
	case FlowTaskCreation:
		return append([]Step(nil), taskSteps...)
	default:
		return nil
	}
}

// Flow reports which flow kind a step belongs to, FlowNone for unknown tags.
func (s Step) Flow() FlowKind {
	return stepFlows[s]
}

func FirstStep(flow FlowKind) Step {
	switch flow {
	case FlowBugReport:
		return StepBugDescription
	case FlowTaskCreation:
		return StepTaskBoard
	default:
		return StepNone
	}
}

func AttachmentStep(flow FlowKind) Step {
	if flow == FlowTaskCreation {
		return StepTaskAttachments
	}
	return StepBugAttachments
}

func UploadMoreStep(flow FlowKind) Step {
	if flow == FlowTaskCreation {
		return StepTaskUploadMore
	}
	return StepBugUploadMore
}

func FinalizeStep(flow FlowKind) Step {
	if flow == FlowTaskCreation {
		return StepTaskFinalize
	}
	return StepBugFinalize
}

func (f FlowKind) Label() string {
	switch f {
	case FlowBugReport:
		return "Bug report"
	case FlowTaskCreation:
		return "Task"
	default:
		return "Process"
	}
}

type NewDevice struct {
	Name      string `json:"name,omitempty"`
	OS        string `json:"os,omitempty"`
	OSVersion string `json:"os_version,omitempty"`
}

type State struct {
	UserID          int64     `json:"user_id"`
	Flow            FlowKind  `json:"flow"`
	Step            Step      `json:"step"`
	OriginChatID    int64     `json:"origin_chat_id"`
	ChannelName     string    `json:"channel_name"`
	Username        string    `json:"username"`
	FirstName       string    `json:"first_name,omitempty"`
	PromptMessageID int64     `json:"prompt_message_id,omitempty"`
	Description     string    `json:"description,omitempty"`
	DeviceID        int64     `json:"device_id,omitempty"`
	NewDevice       NewDevice `json:"new_device,omitempty"`
	AppVersion      string    `json:"app_version,omitempty"`
	BoardID         int64     `json:"board_id,omitempty"`
	ProjectKey      string    `json:"project_key,omitempty"`
	EpicKey         string    `json:"epic_key,omitempty"`
	Epicless        bool      `json:"epicless,omitempty"`
	AssigneeID      string    `json:"assignee_id,omitempty"`
	Title           string    `json:"title,omitempty"`
	Files           []string  `json:"files,omitempty"`
	TicketKey       string    `json:"ticket_key,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Active reports whether the state describes a running flow.
func (s State) Active() bool {
	return s.Step != StepNone
}

// Consistent reports whether the step belongs to the recorded flow kind.
func (s State) Consistent() bool {
	return s.Flow != FlowNone && s.Step.Flow() == s.Flow
}

// Reporter is the "@username" of the user, or their first name when they have
// no username.
func (s State) Reporter() string {
	if username := strings.TrimSpace(s.Username); username != "" {
		return "@" + strings.TrimPrefix(username, "@")
	}
	if name := strings.TrimSpace(s.FirstName); name != "" {
		return name
	}
	return "unknown user"
}

func (s State) Clone() State {
	clone := s
	if s.Files != nil {
		clone.Files = append([]string(nil), s.Files...)
	}
	return clone
}
