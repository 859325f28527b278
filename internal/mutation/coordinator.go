// Package mutation applies optimistic updates to cached resources and
// reconciles them with the server.
//
// Each cache key has at most one mutation pipeline: Idle -> Pending(snapshot)
// -> Reconciling -> Idle. A second attempt on a busy key is rejected.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"goflare.io/bento/internal/fetch"
	"goflare.io/bento/internal/invalidation"
	"goflare.io/bento/internal/models"
	"goflare.io/bento/internal/store"
)

// Phase is the state of a key's mutation pipeline.
type Phase int

const (
	Idle Phase = iota
	Pending
	Reconciling
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Reconciling:
		return "reconciling"
	default:
		return "idle"
	}
}

const tempIDPrefix = "temp_"

// TempID returns an identifier for a synthetic row. It never survives reconciliation.
func TempID() string {
	return tempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id was produced by TempID.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

// Request describes one optimistic mutation of the resource cached under Key.
type Request[T any] struct {
	Key string
	// Synthesize builds the locally plausible next value from the cached one.
	Synthesize func(current T) (T, error)
	// Mutate issues the real server mutation.
	Mutate func(ctx context.Context) error
	// Fetch loads the authoritative value after Mutate succeeds.
	Fetch fetch.Func[T]
	// Events are handed to the invalidation policy once the server accepted the mutation.
	Events []invalidation.Event
}

type pipeline struct {
	phase    Phase
	snapshot []byte
}

// Coordinator owns the per-key pipelines.
type Coordinator struct {
	store  *store.Store
	hub    *fetch.Hub
	policy *invalidation.Policy
	logger *zap.Logger
	tracer trace.Tracer

	mu        sync.Mutex
	pipelines map[string]*pipeline
}

// New creates a Coordinator.
func New(hub *fetch.Hub, policy *invalidation.Policy, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		store:     hub.Store(),
		hub:       hub,
		policy:    policy,
		logger:    logger,
		tracer:    otel.Tracer("bento/mutation"),
		pipelines: make(map[string]*pipeline),
	}
}

// Phase returns the current phase of key's pipeline.
func (c *Coordinator) Phase(key string) Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pipelines[key]; ok {
		return p.phase
	}
	return Idle
}

func (c *Coordinator) begin(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pipelines[key]; ok && p.phase != Idle {
		return fmt.Errorf("%w: %s is %s", models.ErrMutationInFlight, key, p.phase)
	}
	c.pipelines[key] = &pipeline{phase: Pending}
	return nil
}

func (c *Coordinator) transition(key string, phase Phase, snapshot []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if phase == Idle {
		delete(c.pipelines, key)
		return
	}
	p := c.pipelines[key]
	p.phase = phase
	if snapshot != nil {
		p.snapshot = snapshot
	}
}

// Apply runs req through the pipeline and returns the authoritative value.
//
// On a failed server call the pre-mutation snapshot is restored to the cache
// and to every subscriber, and the error is returned. If the server accepted
// the mutation but the corrective fetch fails, the snapshot is restored, the
// key is dropped so the next access refetches, and the error is returned.
func Apply[T any](ctx context.Context, c *Coordinator, req Request[T]) (T, error) {
	var zero T

	ctx, span := c.tracer.Start(ctx, "Coordinator.Apply", trace.WithAttributes(attribute.String("key", req.Key)))
	defer span.End()

	if err := c.begin(req.Key); err != nil {
		span.RecordError(err)
		return zero, err
	}
	defer c.transition(req.Key, Idle, nil)

	snap, ok := c.store.ReadRaw(ctx, req.Key)
	if !ok {
		err := fmt.Errorf("%w: %s", models.ErrPreconditionFailed, req.Key)
		span.RecordError(err)
		return zero, err
	}
	c.transition(req.Key, Pending, snap)

	var current T
	if err := c.store.Decode(snap, &current); err != nil {
		err = fmt.Errorf("%w: %s: %w", models.ErrPreconditionFailed, req.Key, err)
		span.RecordError(err)
		return zero, err
	}

	next, err := req.Synthesize(current)
	if err != nil {
		return zero, fmt.Errorf("synthesize %s: %w", req.Key, err)
	}
	c.store.Write(ctx, req.Key, next)
	c.hub.Publish(req.Key, next)
	c.logger.Debug("Optimistic value published", zap.String("key", req.Key))

	if err := req.Mutate(ctx); err != nil {
		span.RecordError(err)
		rollback[T](ctx, c, req.Key)
		return zero, remoteErr(err)
	}

	c.transition(req.Key, Reconciling, nil)
	if len(req.Events) > 0 {
		c.policy.Apply(ctx, req.Events...)
	}

	fresh, err := req.Fetch(ctx)
	if err != nil {
		span.RecordError(err)
		rollback[T](ctx, c, req.Key)
		c.store.Remove(ctx, req.Key)
		return zero, remoteErr(fmt.Errorf("reconcile %s: %w", req.Key, err))
	}

	c.store.Write(ctx, req.Key, fresh)
	c.hub.Publish(req.Key, fresh)
	c.store.Metrics().Reconciled.Inc()
	return fresh, nil
}

func remoteErr(err error) error {
	if errors.Is(err, models.ErrRemote) {
		return err
	}
	return fmt.Errorf("%w: %w", models.ErrRemote, err)
}

// Snapshot returns the pre-mutation bytes held by key's pipeline.
func (c *Coordinator) Snapshot(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pipelines[key]
	if !ok || p.snapshot == nil {
		return nil, false
	}
	return p.snapshot, true
}

// rollback writes the snapshot taken before the optimistic write, not
// whatever the cache holds now, and publishes it.
func rollback[T any](ctx context.Context, c *Coordinator, key string) {
	snap, ok := c.Snapshot(key)
	if !ok {
		return
	}
	c.store.WriteRaw(ctx, key, snap)
	c.store.Metrics().Rollbacks.Inc()

	var prior T
	if err := c.store.Decode(snap, &prior); err != nil {
		c.logger.Error("Failed to decode rollback snapshot", zap.String("key", key), zap.Error(err))
		return
	}
	c.hub.Publish(key, prior)
	c.logger.Info("Rolled back optimistic update", zap.String("key", key))
}
