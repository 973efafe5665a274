package twin

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/veridex-labs/veridex/internal/model"
)

// stubDecider approves or rejects every request without a real roster.
type stubDecider struct {
	approve  bool
	fail     bool
	sessions int
}

func (d *stubDecider) Decide(_ context.Context, req model.IdentityRequest) (*model.CoordinationSession, error) {
	d.sessions++
	s := &model.CoordinationSession{
		ID:            uuid.New(),
		IdentityID:    req.ID,
		AssetType:     req.Type,
		FinalDecision: model.DecisionRejected,
	}
	if d.fail {
		s.Error = "no agents online"
		return s, fmt.Errorf("consensus: no agents online")
	}
	if d.approve {
		s.FinalDecision = model.DecisionApproved
		s.Consensus = model.ConsensusResult{Ratio: 1.0, Achieved: true, Total: 3, Approvals: 3}
	}
	return s, nil
}

func TestCreateRegistersApprovedTwin(t *testing.T) {
	r := NewRegistry(&stubDecider{approve: true}, 1, testLogger())
	defer r.Close()

	tw, err := r.CreateVehicleTwin(context.Background(), "VEH-1", map[string]any{"make": "Aurora"})
	if err != nil {
		t.Fatalf("CreateVehicleTwin error: %v", err)
	}
	if tw.Type() != model.AssetVehicle {
		t.Fatalf("unexpected type %s", tw.Type())
	}

	got, err := r.Get("VEH-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.SubjectID() != "VEH-1" {
		t.Fatalf("unexpected subject %s", got.SubjectID())
	}

	snap := got.Snapshot()
	if snap.HealthScore < 0 || snap.HealthScore > 100 {
		t.Fatalf("health score %v outside [0, 100]", snap.HealthScore)
	}
	if len(r.List()) != 1 {
		t.Fatalf("expected 1 twin listed, got %d", len(r.List()))
	}
}

func TestCreateRejectedLeavesNoTwin(t *testing.T) {
	r := NewRegistry(&stubDecider{approve: false}, 1, testLogger())
	defer r.Close()

	_, err := r.CreatePetTwin(context.Background(), "PET-1", nil)
	var rejection *RejectionError
	if !errors.As(err, &rejection) {
		t.Fatalf("expected RejectionError, got %v", err)
	}
	if rejection.Session == nil {
		t.Fatal("rejection must carry the coordination session for audit")
	}

	if _, err := r.Get("PET-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rejected creation must not register a twin, got %v", err)
	}
}

func TestCreateDispatchFailureLeavesNoTwin(t *testing.T) {
	r := NewRegistry(&stubDecider{fail: true}, 1, testLogger())
	defer r.Close()

	_, err := r.CreatePetTwin(context.Background(), "PET-1", nil)
	var rejection *RejectionError
	if !errors.As(err, &rejection) {
		t.Fatalf("expected RejectionError, got %v", err)
	}
	if !rejection.Session.Failed() {
		t.Fatal("expected failure session inside rejection")
	}
	if _, err := r.Get("PET-1"); !errors.Is(err, ErrNotFound) {
		t.Fatal("failed creation must not register a twin")
	}
}

func TestCreateDuplicateSubjectRejected(t *testing.T) {
	d := &stubDecider{approve: true}
	r := NewRegistry(d, 1, testLogger())
	defer r.Close()

	if _, err := r.CreateIoTTwin(context.Background(), "IOT-1", nil); err != nil {
		t.Fatalf("first creation error: %v", err)
	}
	if _, err := r.CreateIoTTwin(context.Background(), "IOT-1", nil); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if d.sessions != 1 {
		t.Fatalf("duplicate creation must not run a coordination round, got %d rounds", d.sessions)
	}
}

func TestRemoveStopsRunner(t *testing.T) {
	r := NewRegistry(&stubDecider{approve: true}, 1, testLogger())
	defer r.Close()

	tw, err := r.CreateIoTTwin(context.Background(), "IOT-2", nil)
	if err != nil {
		t.Fatalf("CreateIoTTwin error: %v", err)
	}

	// Swap to a fast cadence and let it tick.
	tw.runner.Stop()
	tw.runner.override = time.Millisecond
	tw.runner.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for {
		tw.mu.Lock()
		n := len(tw.readings)
		tw.mu.Unlock()
		if n >= 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("runner never ticked")
		}
		time.Sleep(time.Millisecond)
	}

	if err := r.Remove("IOT-2"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}

	before := tw.Snapshot().LastUpdate
	time.Sleep(20 * time.Millisecond)
	if after := tw.Snapshot().LastUpdate; !after.Equal(before) {
		t.Fatal("twin kept ticking after Remove")
	}

	if _, err := r.Get("IOT-2"); !errors.Is(err, ErrNotFound) {
		t.Fatal("removed twin still registered")
	}
}

func TestRemoveUnknownSubject(t *testing.T) {
	r := NewRegistry(&stubDecider{approve: true}, 1, testLogger())
	defer r.Close()
	if err := r.Remove("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateDispatchByType(t *testing.T) {
	r := NewRegistry(&stubDecider{approve: true}, 1, testLogger())
	defer r.Close()

	for _, at := range model.ValidAssetTypes {
		tw, err := r.Create(context.Background(), at, "subject-"+string(at), nil)
		if err != nil {
			t.Fatalf("Create(%s) error: %v", at, err)
		}
		if tw.Type() != at {
			t.Fatalf("Create(%s) built %s twin", at, tw.Type())
		}
	}

	if _, err := r.Create(context.Background(), model.AssetType("boat"), "B-1", nil); err == nil {
		t.Fatal("expected error for unsupported asset type")
	}
}
