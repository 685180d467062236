package automation

import (
	"context"
	"errors"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(NewSQLiteRepository(setupTestDB(t)), newTestValidator(t))
}

func TestStore_CreateScenario(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	s := testScenario("Evening", "AA:BB:CC:DD:EE:01", CmdTurnOn)
	s.IsActive = false
	if err := store.CreateScenario(ctx, s); err != nil {
		t.Fatalf("CreateScenario() error = %v", err)
	}
	if !s.IsActive {
		t.Error("CreateScenario() should activate the scenario")
	}

	active, err := store.ListActiveScenarios(ctx)
	if err != nil {
		t.Fatalf("ListActiveScenarios() error = %v", err)
	}
	if len(active) != 1 {
		t.Errorf("ListActiveScenarios() len = %d, want 1", len(active))
	}
}

func TestStore_CreateScenario_Rejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr error
	}{
		{"blank name", func(s *Scenario) { s.Name = "" }, ErrInvalidName},
		{"unknown trigger", func(s *Scenario) { s.TriggerType = "sunset" }, ErrInvalidTrigger},
		{"bad window", func(s *Scenario) { s.TriggerParams["end"] = "24:00" }, ErrInvalidTrigger},
		{"bad command", func(s *Scenario) { s.ActionParams["command"] = "explode" }, ErrInvalidAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testScenario("Rule", "AA:BB:CC:DD:EE:01", CmdTurnOn)
			tt.mutate(s)
			if err := store.CreateScenario(ctx, s); !errors.Is(err, tt.wantErr) {
				t.Errorf("CreateScenario() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	all, err := store.ListScenarios(ctx)
	if err != nil {
		t.Fatalf("ListScenarios() error = %v", err)
	}
	if len(all) != 0 {
		t.Errorf("rejected scenarios were persisted: %v", all)
	}
}

func TestStore_DeleteAndRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	s := testScenario("Boost", "AA:BB:CC:DD:EE:01", CmdTurnOn)
	if err := store.CreateScenario(ctx, s); err != nil {
		t.Fatalf("CreateScenario() error = %v", err)
	}

	exec := &Execution{ScenarioID: s.ID, DeviceID: s.TargetDevice(), Command: s.ActionCommand(), Success: true}
	if err := store.RecordExecution(ctx, exec); err != nil {
		t.Fatalf("RecordExecution() error = %v", err)
	}

	byDevice, err := store.ScenariosForDevice(ctx, "AA:BB:CC:DD:EE:01")
	if err != nil || len(byDevice) != 1 {
		t.Fatalf("ScenariosForDevice() = %v, %v", byDevice, err)
	}
	if byDevice[0].LastStatus == nil || !*byDevice[0].LastStatus {
		t.Errorf("LastStatus = %v, want true", byDevice[0].LastStatus)
	}

	if err := store.DeleteScenario(ctx, s.ID); err != nil {
		t.Fatalf("DeleteScenario() error = %v", err)
	}
	got, err := store.GetScenario(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetScenario() error = %v", err)
	}
	if got.IsActive {
		t.Error("deleted scenario should be inactive")
	}

	history, err := store.ListExecutions(ctx, s.ID, 5)
	if err != nil || len(history) != 1 {
		t.Errorf("ListExecutions() = %v, %v", history, err)
	}
}

func TestScenario_DeepCopy(t *testing.T) {
	ok := true
	s := testScenario("A", "d1", CmdSetMode)
	s.LastStatus = &ok
	s.ActionParams["nested"] = map[string]any{"k": "v"}

	cpy := s.DeepCopy()
	cpy.ActionParams["device_id"] = "d2"
	cpy.ActionParams["nested"].(map[string]any)["k"] = "changed"
	*cpy.LastStatus = false

	if s.TargetDevice() != "d1" {
		t.Error("DeepCopy shares ActionParams")
	}
	if s.ActionParams["nested"].(map[string]any)["k"] != "v" {
		t.Error("DeepCopy shares nested maps")
	}
	if !*s.LastStatus {
		t.Error("DeepCopy shares LastStatus")
	}
}
