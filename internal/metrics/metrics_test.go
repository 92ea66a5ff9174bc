package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dwizi/intakebot/internal/heartbeat"
	"github.com/dwizi/intakebot/internal/workflow"
)

func counterValue(t *testing.T, recorder *Recorder, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := recorder.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					continue metrics
				}
			}
			if metric.GetCounter() != nil {
				return metric.GetCounter().GetValue()
			}
			return metric.GetGauge().GetValue()
		}
	}
	return 0
}

func TestFlowCounters(t *testing.T) {
	recorder := New()
	recorder.FlowStarted(workflow.FlowBugReport)
	recorder.FlowStarted(workflow.FlowBugReport)
	recorder.FlowFinished(workflow.FlowBugReport, "completed")
	recorder.StepHandled(workflow.StepBugDevice, "reprompted")
	recorder.AttachmentHandled("forward", false)

	if got := counterValue(t, recorder, "intakebot_flows_started_total", map[string]string{"flow": "bug_report"}); got != 2 {
		t.Fatalf("expected 2 started flows, got %v", got)
	}
	if got := counterValue(t, recorder, "intakebot_flows_finished_total", map[string]string{"outcome": "completed"}); got != 1 {
		t.Fatalf("expected 1 completed flow, got %v", got)
	}
	if got := counterValue(t, recorder, "intakebot_steps_total", map[string]string{"step": "bug_device", "outcome": "reprompted"}); got != 1 {
		t.Fatalf("expected 1 reprompt, got %v", got)
	}
	if got := counterValue(t, recorder, "intakebot_attachments_total", map[string]string{"operation": "forward", "result": "error"}); got != 1 {
		t.Fatalf("expected 1 failed forward, got %v", got)
	}
}

func TestRefreshAndComponentGauges(t *testing.T) {
	recorder := New()
	recorder.RefreshFinished(3, 7, 2, nil)
	recorder.RefreshFinished(0, 0, 0, errors.New("jira down"))
	recorder.ObserveComponents(heartbeat.Snapshot{Components: []heartbeat.Status{
		{Name: "dispatcher", State: heartbeat.StateHealthy},
		{Name: "connector:telegram", State: heartbeat.StateDegraded},
	}})

	if got := counterValue(t, recorder, "intakebot_catalog_entries", map[string]string{"kind": "contributors"}); got != 7 {
		t.Fatalf("expected 7 contributors, got %v", got)
	}
	if got := counterValue(t, recorder, "intakebot_catalog_refresh_total", map[string]string{"result": "error"}); got != 1 {
		t.Fatalf("expected 1 failed refresh, got %v", got)
	}
	if got := counterValue(t, recorder, "intakebot_component_up", map[string]string{"component": "dispatcher"}); got != 1 {
		t.Fatalf("expected dispatcher up, got %v", got)
	}
	if got := counterValue(t, recorder, "intakebot_component_up", map[string]string{"component": "connector:telegram"}); got != 0 {
		t.Fatalf("expected telegram down, got %v", got)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	recorder := New()
	recorder.EventQueued(0)
	recorder.EventHandled(0, 20*time.Millisecond, nil)

	server := httptest.NewServer(recorder.Handler())
	defer server.Close()
	response, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer response.Body.Close()
	body, _ := io.ReadAll(response.Body)
	text := string(body)
	for _, name := range []string{"intakebot_events_queued_total", "intakebot_event_duration_seconds_bucket", "go_goroutines"} {
		if !strings.Contains(text, name) {
			t.Fatalf("expected %s in exposition", name)
		}
	}
}
