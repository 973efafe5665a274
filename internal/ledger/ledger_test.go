package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/veridex-labs/veridex/internal/model"
)

func sampleSession(identityID string, at time.Time) *model.CoordinationSession {
	return &model.CoordinationSession{
		ID:                 uuid.New(),
		IdentityID:         identityID,
		AssetType:          model.AssetVehicle,
		CreatedAt:          at,
		Consensus:          model.ConsensusResult{Approvals: 3, Total: 3, Ratio: 1.0, Achieved: true, Recommended: model.DecisionApproved},
		FinalDecision:      model.DecisionApproved,
		ProcessingTime:     42,
		ParticipatingCount: 3,
	}
}

func TestNewRecordProjectsSession(t *testing.T) {
	session := sampleSession("VEH-1", time.Now().UTC())
	rec, err := NewRecord(session)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	if rec.SessionID != session.ID {
		t.Fatalf("session id = %s, want %s", rec.SessionID, session.ID)
	}
	if rec.FinalDecision != string(model.DecisionApproved) {
		t.Fatalf("final decision = %q", rec.FinalDecision)
	}
	if rec.Failed {
		t.Fatal("record marked failed for a successful session")
	}
	if !rec.VerifyHash() {
		t.Fatal("content hash does not verify")
	}

	var restored model.CoordinationSession
	if err := json.Unmarshal(rec.Payload, &restored); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if restored.IdentityID != "VEH-1" {
		t.Fatalf("payload identity = %q", restored.IdentityID)
	}
}

func TestNewRecordFailedSession(t *testing.T) {
	session := sampleSession("VEH-2", time.Now().UTC())
	session.Error = "no agents online"
	session.FinalDecision = model.DecisionRejected

	rec, err := NewRecord(session)
	if err != nil {
		t.Fatalf("NewRecord: %v", err)
	}
	if !rec.Failed {
		t.Fatal("failed session not flagged in record")
	}
}

func TestRecorderAppendsToStore(t *testing.T) {
	store := NewMemoryStore()
	recorder := NewRecorder(store)

	session := sampleSession("VEH-3", time.Now().UTC())
	if err := recorder.Record(context.Background(), session); err != nil {
		t.Fatalf("Record: %v", err)
	}
	rec, err := store.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.IdentityID != "VEH-3" {
		t.Fatalf("identity = %q", rec.IdentityID)
	}
}

// storeUnderTest runs the shared Store contract tests against a driver.
func storeUnderTest(t *testing.T, open func(t *testing.T) Store) {
	t.Run("RoundTrip", func(t *testing.T) {
		store := open(t)
		session := sampleSession("VEH-10", time.Now().UTC())
		want, err := NewRecord(session)
		if err != nil {
			t.Fatalf("NewRecord: %v", err)
		}
		if err := store.Append(context.Background(), want); err != nil {
			t.Fatalf("Append: %v", err)
		}

		got, err := store.Get(context.Background(), session.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.SessionID != want.SessionID || got.IdentityID != want.IdentityID ||
			got.FinalDecision != want.FinalDecision || got.ContentHash != want.ContentHash {
			t.Fatalf("round-trip mismatch: got %+v want %+v", got, want)
		}
		if !got.VerifyHash() {
			t.Fatal("stored record fails hash verification")
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		store := open(t)
		_, err := store.Get(context.Background(), uuid.New())
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		store := open(t)
		base := time.Now().UTC()
		for i := 0; i < 5; i++ {
			session := sampleSession(fmt.Sprintf("VEH-%d", i), base.Add(time.Duration(i)*time.Second))
			rec, err := NewRecord(session)
			if err != nil {
				t.Fatalf("NewRecord: %v", err)
			}
			if err := store.Append(context.Background(), rec); err != nil {
				t.Fatalf("Append %d: %v", i, err)
			}
		}

		records, err := store.List(context.Background(), 0)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(records) != 5 {
			t.Fatalf("len = %d, want 5", len(records))
		}
		for i, rec := range records {
			want := fmt.Sprintf("VEH-%d", 4-i)
			if rec.IdentityID != want {
				t.Fatalf("records[%d] = %s, want %s", i, rec.IdentityID, want)
			}
		}

		limited, err := store.List(context.Background(), 2)
		if err != nil {
			t.Fatalf("List limit: %v", err)
		}
		if len(limited) != 2 || limited[0].IdentityID != "VEH-4" {
			t.Fatalf("limited list = %+v", limited)
		}
	})

	t.Run("DuplicateAppendFails", func(t *testing.T) {
		store := open(t)
		rec, err := NewRecord(sampleSession("VEH-20", time.Now().UTC()))
		if err != nil {
			t.Fatalf("NewRecord: %v", err)
		}
		if err := store.Append(context.Background(), rec); err != nil {
			t.Fatalf("first Append: %v", err)
		}
		if err := store.Append(context.Background(), rec); err == nil {
			t.Fatal("duplicate Append succeeded, want error")
		}
	})
}

func TestMemoryStore(t *testing.T) {
	storeUnderTest(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	storeUnderTest(t, func(t *testing.T) Store {
		store, err := NewSQLiteStore(context.Background(), ":memory:")
		if err != nil {
			t.Fatalf("NewSQLiteStore: %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}
