// Package twin implements the digital twin telemetry simulators: per-asset
// state machines with bounded reading histories, randomized-walk sampling,
// and rule-table health scoring.
package twin

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veridex-labs/veridex/internal/model"
)

// variant is the behavior bundle for one twin kind. Implementations are
// stateless rule tables; all mutable state lives on the Twin.
type variant interface {
	assetType() model.AssetType
	period() time.Duration
	window() int
	seed(rng *rand.Rand) model.Reading
	step(prev model.Reading, rng *rand.Rand) model.Reading

	// health scores the current reading alone. History never affects it.
	health(cur model.Reading) float64
	alerts(cur model.Reading) []string
	predictions(cur model.Reading, health float64) map[string]any
	recommendations(cur model.Reading, health float64) []string
}

// Twin is an in-memory, periodically updated synthetic state model of one
// registered asset.
type Twin struct {
	id        uuid.UUID
	subjectID string
	metadata  map[string]any
	createdAt time.Time
	v         variant
	logger    *slog.Logger

	mu          sync.Mutex
	rng         *rand.Rand
	readings    []model.Reading
	health      float64
	alertCount  int
	lastUpdate  time.Time
	maintenance []model.MaintenanceRecord

	runner *runner
}

func newTwin(subjectID string, metadata map[string]any, v variant, seed int64, logger *slog.Logger) *Twin {
	t := &Twin{
		id:        uuid.New(),
		subjectID: subjectID,
		metadata:  metadata,
		createdAt: time.Now().UTC(),
		v:         v,
		logger:    logger,
		rng:       rand.New(rand.NewSource(seed)),
	}
	initial := v.seed(t.rng)
	initial.Timestamp = t.createdAt
	t.appendReading(initial)
	t.runner = newRunner(t, logger)
	return t
}

// Tick samples the next reading via the variant's randomized walk, appends
// it to the bounded window, and recomputes health from the new current
// reading.
func (t *Twin) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := t.v.step(t.current(), t.rng)
	next.Timestamp = time.Now().UTC()
	t.appendReading(next)
}

// appendReading inserts a reading, evicting the oldest beyond the window
// capacity, and rescores health. Callers hold t.mu except during construction.
func (t *Twin) appendReading(r model.Reading) {
	t.readings = append(t.readings, r)
	if n := t.v.window(); len(t.readings) > n {
		t.readings = t.readings[len(t.readings)-n:]
	}
	t.health = t.v.health(r)
	t.lastUpdate = r.Timestamp
	if alerts := t.v.alerts(r); len(alerts) > 0 {
		t.alertCount += len(alerts)
		t.logger.Debug("twin alerts raised",
			"subject_id", t.subjectID, "alerts", alerts, "health", t.health)
	}
}

// current returns the latest reading. Callers hold t.mu.
func (t *Twin) current() model.Reading {
	return t.readings[len(t.readings)-1]
}

// SubjectID returns the registered asset identifier this twin mirrors.
func (t *Twin) SubjectID() string { return t.subjectID }

// Type returns the twin's asset type.
func (t *Twin) Type() model.AssetType { return t.v.assetType() }

// Snapshot returns the externally visible twin state.
func (t *Twin) Snapshot() model.TwinSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return model.TwinSnapshot{
		TwinID:      t.id,
		SubjectID:   t.subjectID,
		Type:        t.v.assetType(),
		Metadata:    t.metadata,
		CreatedAt:   t.createdAt,
		LastUpdate:  t.lastUpdate,
		HealthScore: t.health,
		AlertCount:  t.alertCount,
		Current:     t.current(),
	}
}

// Report derives the diagnostic view: bounded history plus rule-table
// predictions over the current reading.
func (t *Twin) Report() model.TwinReport {
	t.mu.Lock()
	cur := t.current()
	health := t.health
	history := make([]model.Reading, len(t.readings))
	copy(history, t.readings)
	maintenance := make([]model.MaintenanceRecord, len(t.maintenance))
	copy(maintenance, t.maintenance)
	t.mu.Unlock()

	return model.TwinReport{
		Snapshot:        t.Snapshot(),
		History:         history,
		Predictions:     t.v.predictions(cur, health),
		ActiveAlerts:    t.v.alerts(cur),
		Recommendations: t.v.recommendations(cur, health),
		Maintenance:     maintenance,
	}
}

// LogMaintenance appends a maintenance record. Vehicle twins only; other
// variants ignore maintenance history.
func (t *Twin) LogMaintenance(rec model.MaintenanceRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maintenance = append(t.maintenance, rec)
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// walk moves v by a uniform step in [-delta, +delta], bounded to [lo, hi].
func walk(v, delta, lo, hi float64, rng *rand.Rand) float64 {
	return clamp(v+(rng.Float64()*2-1)*delta, lo, hi)
}
