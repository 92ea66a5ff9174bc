package workflow

import "testing"

func TestStepsBelongToTheirFlow(t *testing.T) {
	for _, flow := range []FlowKind{FlowBugReport, FlowTaskCreation} {
		steps := Steps(flow)
		if len(steps) == 0 {
			t.Fatalf("expected steps for %s", flow)
		}
		if steps[0] != FirstStep(flow) {
			t.Fatalf("expected first step %s, got %s", FirstStep(flow), steps[0])
		}
		for _, step := range steps {
			if step.Flow() != flow {
				t.Fatalf("expected %s to belong to %s, got %s", step, flow, step.Flow())
			}
		}
		for _, step := range []Step{AttachmentStep(flow), UploadMoreStep(flow), FinalizeStep(flow)} {
			if step.Flow() != flow {
				t.Fatalf("expected %s to belong to %s", step, flow)
			}
		}
	}
	if Steps(FlowNone) != nil {
		t.Fatal("expected no steps for empty flow")
	}
	if Step("bogus").Flow() != FlowNone {
		t.Fatal("expected unknown step to map to no flow")
	}
}

func TestStateConsistency(t *testing.T) {
	cases := []struct {
		name       string
		state      State
		active     bool
		consistent bool
	}{
		{name: "empty", state: State{}, active: false, consistent: false},
		{name: "bug", state: State{Flow: FlowBugReport, Step: StepBugDevice}, active: true, consistent: true},
		{name: "mismatched", state: State{Flow: FlowTaskCreation, Step: StepBugDevice}, active: true, consistent: false},
		{name: "missing flow", state: State{Step: StepTaskTitle}, active: true, consistent: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.state.Active(); got != tc.active {
				t.Fatalf("expected active=%v, got %v", tc.active, got)
			}
			if got := tc.state.Consistent(); got != tc.consistent {
				t.Fatalf("expected consistent=%v, got %v", tc.consistent, got)
			}
		})
	}
}

func TestCloneCopiesFiles(t *testing.T) {
	original := State{Files: []string{"a.jpg"}}
	clone := original.Clone()
	clone.Files[0] = "b.jpg"
	if original.Files[0] != "a.jpg" {
		t.Fatalf("expected original files untouched, got %v", original.Files)
	}
}

func TestReporter(t *testing.T) {
	cases := []struct {
		state State
		want  string
	}{
		{state: State{Username: "alice", FirstName: "Alice"}, want: "@alice"},
		{state: State{FirstName: " Alice "}, want: "Alice"},
		{state: State{}, want: "unknown user"},
	}
	for _, tc := range cases {
		if got := tc.state.Reporter(); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}
