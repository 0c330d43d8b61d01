package engine

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/clabsync/clabsync/pkg/nautobot"
)

type recordedCall struct {
	Method  string
	Path    string
	Payload map[string]any
}

// fakeCaller records every call and mints sequential ids. failPath, when
// set, fails the first call to that path with failErr.
type fakeCaller struct {
	calls    []recordedCall
	failPath string
	failErr  error
}

func (f *fakeCaller) Call(_ context.Context, method, path string, body any, _ url.Values) (nautobot.Object, error) {
	payload, _ := body.(map[string]any)
	f.calls = append(f.calls, recordedCall{Method: method, Path: path, Payload: payload})

	if f.failPath != "" && path == f.failPath {
		return nil, f.failErr
	}

	n := len(f.calls)
	return nautobot.Object{
		"id":      fmt.Sprintf("id-%d", n),
		"display": fmt.Sprintf("obj-%d", n),
	}, nil
}

func buildTestPlan(t *testing.T) *Plan {
	t.Helper()
	doc, ov := loadPlanFixture(t)
	plan, err := BuildPlan(doc, ov, DefaultOptions())
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}
	return plan
}

func TestRun_ExecutesEveryStepInOrder(t *testing.T) {
	plan := buildTestPlan(t)
	fake := &fakeCaller{}
	s := NewSynchronizer(fake, nil, nil, nil, nil)

	report, err := s.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !report.Succeeded() {
		t.Errorf("Expected run to succeed, got status %s", report.Status)
	}
	if len(report.Steps) != len(plan.Intents) {
		t.Fatalf("Expected %d steps, got %d", len(plan.Intents), len(report.Steps))
	}
	if len(fake.calls) != len(plan.Intents) {
		t.Fatalf("Expected %d API calls, got %d", len(plan.Intents), len(fake.calls))
	}

	// Static paths must match the plan order; the patch steps resolve to
	// the bound device ids (ceos-01 device is call 11, ceos-02 is call 19).
	for i, intent := range plan.Intents {
		if fake.calls[i].Method != intent.Method {
			t.Errorf("Call %d: expected method %s, got %s", i+1, intent.Method, fake.calls[i].Method)
		}
		if intent.ResolvePath == nil && fake.calls[i].Path != intent.Path {
			t.Errorf("Call %d: expected path %s, got %s", i+1, intent.Path, fake.calls[i].Path)
		}
	}

	patch1 := fake.calls[17]
	if patch1.Path != nautobot.DevicePath("id-11") {
		t.Errorf("Expected first patch against device id-11, got %s", patch1.Path)
	}
	patch2 := fake.calls[25]
	if patch2.Path != nautobot.DevicePath("id-19") {
		t.Errorf("Expected second patch against device id-19, got %s", patch2.Path)
	}
}

func TestRun_BindsIdentifiersIntoPayloads(t *testing.T) {
	plan := buildTestPlan(t)
	fake := &fakeCaller{}
	s := NewSynchronizer(fake, nil, nil, nil, nil)

	if _, err := s.Run(context.Background(), plan); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Location (call 7) embeds the location type (call 4) and active
	// status (call 5) ids.
	loc := fake.calls[6].Payload
	if got := loc["location_type"].(map[string]any)["id"]; got != "id-4" {
		t.Errorf("Expected location_type id-4, got %v", got)
	}
	if got := loc["status"].(map[string]any)["id"]; got != "id-5" {
		t.Errorf("Expected status id-5, got %v", got)
	}

	// The first device's interface (call 13) references the device (call 11).
	intf := fake.calls[12].Payload
	if got := intf["device"].(map[string]any)["id"]; got != "id-11" {
		t.Errorf("Expected interface device id-11, got %v", got)
	}

	// The first patch (call 18) promotes the management address (call 15).
	patch := fake.calls[17].Payload
	if got := patch["primary_ip4"].(map[string]any)["id"]; got != "id-15" {
		t.Errorf("Expected primary_ip4 id-15, got %v", got)
	}
}

func TestRun_EmitsOneEventPerStep(t *testing.T) {
	plan := buildTestPlan(t)
	fake := &fakeCaller{}

	var events []Event
	reporter := FuncReporter(func(e Event) { events = append(events, e) })
	s := NewSynchronizer(fake, reporter, nil, nil, nil)

	if _, err := s.Run(context.Background(), plan); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(events) != len(plan.Intents) {
		t.Fatalf("Expected %d events, got %d", len(plan.Intents), len(events))
	}
	for i, e := range events {
		if e.Seq != i+1 {
			t.Errorf("Event %d: expected seq %d, got %d", i, i+1, e.Seq)
		}
		want := EventCreated
		if plan.Intents[i].Method == "PATCH" {
			want = EventUpdated
		}
		if e.Type != want {
			t.Errorf("Event %d (%s): expected type %s, got %s", i, e.IntentID, want, e.Type)
		}
	}
}

func TestRun_StopsOnFirstFailure(t *testing.T) {
	plan := buildTestPlan(t)
	fake := &fakeCaller{
		failPath: nautobot.EndpointDevices,
		failErr: &nautobot.Error{
			Class:      nautobot.ClassConflict,
			Method:     "POST",
			Path:       nautobot.EndpointDevices,
			StatusCode: 200,
			Body:       "device with this name already exists",
		},
	}

	var events []Event
	reporter := FuncReporter(func(e Event) { events = append(events, e) })
	s := NewSynchronizer(fake, reporter, nil, nil, nil)

	report, err := s.Run(context.Background(), plan)
	if err == nil {
		t.Fatal("Expected run to fail on the device conflict")
	}
	if !nautobot.IsConflict(err) {
		t.Errorf("Expected the client's conflict classification to surface, got: %v", err)
	}

	// Scaffolding is 10 steps; the first device is step 11 and must be the
	// last thing attempted.
	if len(fake.calls) != 11 {
		t.Errorf("Expected execution to stop after 11 calls, got %d", len(fake.calls))
	}
	if report.Status != RunFailed {
		t.Errorf("Expected failed status, got %s", report.Status)
	}
	if len(report.Steps) != 11 {
		t.Fatalf("Expected 11 recorded steps, got %d", len(report.Steps))
	}
	last := report.Steps[len(report.Steps)-1]
	if last.Status != StepFailed {
		t.Errorf("Expected last step to be failed, got %s", last.Status)
	}
	if events[len(events)-1].Type != EventFailed {
		t.Errorf("Expected a failed event for the last step, got %s", events[len(events)-1].Type)
	}
}

func TestRun_ContractErrorOnUnboundBinding(t *testing.T) {
	plan := &Plan{
		ID: "test",
		Intents: []*Intent{
			{
				ID:     "orphan",
				Kind:   KindDevice,
				Method: "POST",
				Path:   nautobot.EndpointDevices,
				Payload: func(b *Bindings) (map[string]any, error) {
					ref, err := b.Ref("never-bound")
					if err != nil {
						return nil, err
					}
					return map[string]any{"id": ref.ID}, nil
				},
			},
		},
	}

	s := NewSynchronizer(&fakeCaller{}, nil, nil, nil, nil)
	report, err := s.Run(context.Background(), plan)
	if err == nil {
		t.Fatal("Expected contract violation for unbound binding")
	}
	if !IsContract(err) {
		t.Errorf("Expected contract violation, got: %v", err)
	}
	if report.Status != RunFailed {
		t.Errorf("Expected failed status, got %s", report.Status)
	}
}

func TestBindings_WriteOnce(t *testing.T) {
	b := NewBindings()

	if err := b.Bind("device", Ref{ID: "1", Display: "r1"}); err != nil {
		t.Fatalf("First bind failed: %v", err)
	}
	if err := b.Bind("device", Ref{ID: "2", Display: "r2"}); err == nil {
		t.Fatal("Expected error for rebinding a key")
	} else if !IsContract(err) {
		t.Errorf("Expected contract violation, got: %v", err)
	}

	ref, err := b.Ref("device")
	if err != nil {
		t.Fatalf("Ref failed: %v", err)
	}
	if ref.ID != "1" {
		t.Errorf("Expected original binding preserved, got id %s", ref.ID)
	}

	if _, err := b.Ref("missing"); err == nil {
		t.Fatal("Expected error for unbound key")
	}
}
