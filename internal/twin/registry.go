package twin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/veridex-labs/veridex/internal/model"
)

var meter = otel.Meter("veridex/twin")

// ErrNotFound is returned for lookups of unregistered subject ids.
var ErrNotFound = fmt.Errorf("twin: not found")

// ErrExists is returned when creating a twin for an already-registered
// subject id. Creation is rejecting, not overwriting: silently replacing a
// live twin would orphan its runner.
var ErrExists = fmt.Errorf("twin: subject already registered")

// RejectionError reports a creation refused by the coordination round. The
// session is retained for audit.
type RejectionError struct {
	Session *model.CoordinationSession
}

func (e *RejectionError) Error() string {
	if e.Session.Failed() {
		return fmt.Sprintf("twin: creation rejected: coordination failed: %s", e.Session.Error)
	}
	return fmt.Sprintf("twin: creation rejected: consensus ratio %.2f below threshold",
		e.Session.Consensus.Ratio)
}

// Decider is the slice of the coordinator the registry needs.
type Decider interface {
	Decide(ctx context.Context, req model.IdentityRequest) (*model.CoordinationSession, error)
}

// Registry owns twin instances keyed by subject id and gates creation on a
// coordinated approval.
type Registry struct {
	decider Decider
	logger  *slog.Logger
	seed    int64

	mu    sync.Mutex
	twins map[string]*Twin
	next  int64 // per-twin seed offset

	created metric.Int64Counter
}

// NewRegistry creates an empty registry. seed makes twin telemetry
// reproducible under test.
func NewRegistry(decider Decider, seed int64, logger *slog.Logger) *Registry {
	r := &Registry{
		decider: decider,
		logger:  logger,
		seed:    seed,
		twins:   make(map[string]*Twin),
	}
	r.created, _ = meter.Int64Counter("twin.created",
		metric.WithDescription("Twins registered after coordinated approval, by asset type."))
	return r
}

// CreateVehicleTwin registers a vehicle twin after coordinated approval.
func (r *Registry) CreateVehicleTwin(ctx context.Context, subjectID string, metadata map[string]any) (*Twin, error) {
	return r.create(ctx, subjectID, metadata, vehicleVariant{})
}

// CreatePetTwin registers a pet twin after coordinated approval.
func (r *Registry) CreatePetTwin(ctx context.Context, subjectID string, metadata map[string]any) (*Twin, error) {
	return r.create(ctx, subjectID, metadata, petVariant{})
}

// CreateIoTTwin registers an IoT device twin after coordinated approval.
func (r *Registry) CreateIoTTwin(ctx context.Context, subjectID string, metadata map[string]any) (*Twin, error) {
	return r.create(ctx, subjectID, metadata, iotVariant{})
}

// Create dispatches on asset type.
func (r *Registry) Create(ctx context.Context, assetType model.AssetType, subjectID string, metadata map[string]any) (*Twin, error) {
	switch assetType {
	case model.AssetVehicle:
		return r.CreateVehicleTwin(ctx, subjectID, metadata)
	case model.AssetPet:
		return r.CreatePetTwin(ctx, subjectID, metadata)
	case model.AssetIoT:
		return r.CreateIoTTwin(ctx, subjectID, metadata)
	default:
		return nil, fmt.Errorf("twin: unsupported asset type %q", assetType)
	}
}

func (r *Registry) create(ctx context.Context, subjectID string, metadata map[string]any, v variant) (*Twin, error) {
	r.mu.Lock()
	_, exists := r.twins[subjectID]
	r.mu.Unlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrExists, subjectID)
	}

	req := model.IdentityRequest{ID: subjectID, Type: v.assetType(), Metadata: metadata}
	session, err := r.decider.Decide(ctx, req)
	if err != nil || !session.Approved() {
		return nil, &RejectionError{Session: session}
	}

	r.mu.Lock()
	if _, exists := r.twins[subjectID]; exists {
		// A concurrent creation won the race while we were coordinating.
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrExists, subjectID)
	}
	r.next++
	t := newTwin(subjectID, metadata, v, r.seed+r.next, r.logger)
	r.twins[subjectID] = t
	r.mu.Unlock()

	t.runner.Start(context.WithoutCancel(ctx))
	r.created.Add(ctx, 1, metric.WithAttributes(
		attribute.String("asset.type", string(v.assetType()))))
	r.logger.Info("twin registered",
		"subject_id", subjectID, "type", v.assetType(), "session_id", session.ID)
	return t, nil
}

// Get returns the twin for a subject id.
func (r *Registry) Get(subjectID string) (*Twin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.twins[subjectID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, subjectID)
	}
	return t, nil
}

// List returns snapshots of every registered twin.
func (r *Registry) List() []model.TwinSnapshot {
	r.mu.Lock()
	twins := make([]*Twin, 0, len(r.twins))
	for _, t := range r.twins {
		twins = append(twins, t)
	}
	r.mu.Unlock()

	snapshots := make([]model.TwinSnapshot, len(twins))
	for i, t := range twins {
		snapshots[i] = t.Snapshot()
	}
	return snapshots
}

// Remove tears a twin down, stopping its update schedule.
func (r *Registry) Remove(subjectID string) error {
	r.mu.Lock()
	t, ok := r.twins[subjectID]
	delete(r.twins, subjectID)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, subjectID)
	}
	t.runner.Stop()
	r.logger.Info("twin removed", "subject_id", subjectID)
	return nil
}

// Close stops every twin's runner. The registry is unusable afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	twins := make([]*Twin, 0, len(r.twins))
	for _, t := range r.twins {
		twins = append(twins, t)
	}
	r.twins = make(map[string]*Twin)
	r.mu.Unlock()

	for _, t := range twins {
		t.runner.Stop()
	}
}
