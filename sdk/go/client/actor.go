package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/entisync/internal/core/ecs"
	"github.com/zeusync/entisync/internal/core/observability/log"
	"github.com/zeusync/entisync/internal/core/replication"
	"github.com/zeusync/entisync/sdk/go/client/storage"
)

// KindClientActor is the kind of the component driving client-owned entities.
const KindClientActor ecs.Kind = "ClientActorComponent"

var (
	_ ecs.Updater   = (*ClientActor)(nil)
	_ ecs.Destroyer = (*ClientActor)(nil)
)

// Publisher sends partial state of an owned entity to the server.
type Publisher interface {
	UpdateEntity(ctx context.Context, id ecs.EntityID, state replication.State) error
}

// ClientActor publishes the replicable state of the entity it is attached
// to. Every interval it serializes the entity, skips kinds whose
// fingerprint did not change and sends the changed paths of the rest.
type ClientActor struct {
	ecs.Base

	blueprint string
	publisher Publisher
	interval  float64
	timeout   time.Duration
	logger    log.Log

	elapsed      float64
	fingerprints map[ecs.Kind]uint64
	sent         map[ecs.Kind]replication.Patch
}

// NewClientActor creates the actor. interval is the publish period and
// timeout bounds a single publish.
func NewClientActor(blueprint string, publisher Publisher, interval, timeout time.Duration, logger log.Log) *ClientActor {
	return &ClientActor{
		blueprint:    blueprint,
		publisher:    publisher,
		interval:     interval.Seconds(),
		timeout:      timeout,
		logger:       logger,
		fingerprints: make(map[ecs.Kind]uint64),
		sent:         make(map[ecs.Kind]replication.Patch),
	}
}

// ClientActorDescriptor registers the actor. It is not replicated.
func ClientActorDescriptor() ecs.Descriptor {
	return ecs.Describe[*ClientActor](KindClientActor)
}

func (*ClientActor) Kind() ecs.Kind {
	return KindClientActor
}

// Blueprint returns the blueprint the entity was created from.
func (a *ClientActor) Blueprint() string {
	return a.blueprint
}

func (a *ClientActor) OnUpdate(ev ecs.UpdateEvent) {
	a.elapsed += ev.Delta
	if a.elapsed < a.interval {
		return
	}
	a.elapsed = 0

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.Publish(ctx); err != nil {
		a.logger.Warn("Failed to publish entity state",
			log.Uint64("entity_id", uint64(a.Entity().ID())),
			log.Error(err))
	}
}

func (a *ClientActor) OnDestroy(ecs.DestroyEvent) {
	clear(a.fingerprints)
	clear(a.sent)
}

// Changes returns the paths changed since the last publish without
// marking them as sent.
func (a *ClientActor) Changes() replication.State {
	changes, _ := a.changes()
	return changes
}

// Publish sends the changed state, if any. Nothing is marked as sent when
// the publisher fails, so the next attempt carries the same paths.
func (a *ClientActor) Publish(ctx context.Context) error {
	changes, current := a.changes()
	if len(changes) == 0 {
		return nil
	}
	if err := a.publisher.UpdateEntity(ctx, a.Entity().ID(), changes); err != nil {
		return err
	}
	for kind, fp := range current {
		a.fingerprints[kind] = fp.sum
		a.sent[kind] = fp.patch
	}
	return nil
}

type fingerprint struct {
	sum   uint64
	patch replication.Patch
}

func (a *ClientActor) changes() (replication.State, map[ecs.Kind]fingerprint) {
	world := a.World()
	if world == nil {
		return nil, nil
	}
	changes := replication.State{}
	current := make(map[ecs.Kind]fingerprint)
	for name, patch := range world.SerializeEntity(a.Entity()) {
		kind := ecs.Kind(name)
		sum, err := hashPatch(patch)
		if err != nil {
			a.logger.Warn("Cannot fingerprint component", log.String("kind", name), log.Error(err))
			continue
		}
		if prev, ok := a.fingerprints[kind]; ok && prev == sum {
			continue
		}
		diff := replication.Diff(a.sent[kind], patch)
		if len(diff) == 0 {
			continue
		}
		changes[name] = diff
		current[kind] = fingerprint{sum: sum, patch: patch}
	}
	return changes, current
}

// hashPatch fingerprints the JSON form, which orders map keys.
func hashPatch(p replication.Patch) (uint64, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(raw), nil
}

// Save writes the entity to store.
func (a *ClientActor) Save(store storage.Store) error {
	world := a.World()
	if world == nil {
		return ecs.ErrEntityNotFound
	}
	return store.UpdateEntity(a.Entity().ID(), storage.SavedEntity{
		BlueprintID: a.blueprint,
		Components:  world.SerializeEntity(a.Entity()),
	})
}

// Load restores the entity from store and reports whether anything was
// saved for it. Restored state is published on the next interval.
func (a *ClientActor) Load(store storage.Store) (bool, error) {
	world := a.World()
	if world == nil {
		return false, ecs.ErrEntityNotFound
	}
	saved, ok, err := store.GetEntity(a.Entity().ID())
	if err != nil || !ok {
		return false, err
	}
	world.DeserializeEntity(a.Entity(), saved.Components)
	return true, nil
}
