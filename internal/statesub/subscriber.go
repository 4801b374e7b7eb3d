// Package statesub consumes the remote backend's state-change
// notification stream and applies each batch to the coherent cache in
// order (spec §4.4, C4). Grounded on silkworm/silkrpc's
// backend/remote_state_change_source, adapted here with
// golang.org/x/sync/errgroup driving the receive loop and
// golang.org/x/time/rate backing off between reconnect attempts, per
// this daemon's domain-stack wiring.
package statesub

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/erigontech/rpcdaemon/internal/rpclog"
	"github.com/erigontech/rpcdaemon/internal/rpctypes"
	"github.com/erigontech/rpcdaemon/internal/statecache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Stream is the minimal server-streaming contract this package consumes
// (a thin wrapper over the generated gRPC StateChanges client stream).
type Stream interface {
	Recv() (*rpctypes.StateChangeBatch, error)
}

// Dialer opens a fresh subscription stream, used to reconnect after a
// transport break without losing the cache's accumulated state (spec §4.4
// "Failure").
type Dialer func(ctx context.Context) (Stream, error)

// Subscriber applies state-change batches to a cache, reconnecting on
// stream failure rather than surfacing the error to callers.
type Subscriber struct {
	dial  Dialer
	cache *statecache.Cache
	log   rpclog.Logger

	// limiter paces reconnect attempts: the remote backend may be
	// restarting, and a tight retry loop would just add load during an
	// outage.
	limiter *rate.Limiter
}

// New builds a subscriber that applies batches to cache. reconnectInterval
// is the minimum spacing between successive (re)dial attempts.
func New(dial Dialer, cache *statecache.Cache, reconnectInterval time.Duration) *Subscriber {
	return &Subscriber{
		dial:    dial,
		cache:   cache,
		log:     rpclog.New("component", "statesub"),
		limiter: rate.NewLimiter(rate.Every(reconnectInterval), 1),
	}
}

// Run drives the subscription until ctx is cancelled. Every batch is
// applied strictly in receive order: the cache never observes block N+1
// before block N (spec §4.4 "Ordering"). A dial failure or a stream error
// leads to a paced reconnect; a stream that ends cleanly with io.EOF makes
// Run return nil.
func (s *Subscriber) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			if err := s.limiter.Wait(ctx); err != nil {
				return ctx.Err()
			}
			stream, err := s.dial(ctx)
			if err != nil {
				s.log.Warn("subscribe failed, will retry", "err", err)
				continue
			}
			if err := s.drain(ctx, stream); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.log.Warn("subscription stream broke, reconnecting", "err", err)
				continue
			}
			return nil
		}
	})
	return g.Wait()
}

// drain applies every batch received on stream until it ends or errors.
// The cache is never cleared on break: stale-but-present entries are
// still valid answers until superseded, and losing them would force every
// subsequent read to fall back to the database (spec §4.4, §4.5).
func (s *Subscriber) drain(ctx context.Context, stream Stream) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		batch, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		s.apply(batch)
	}
}

func (s *Subscriber) apply(batch *rpctypes.StateChangeBatch) {
	for _, cb := range batch.ChangeBatch {
		var stateChanges, codeChanges []statecache.StateChange
		for _, ac := range cb.Changes {
			key := ac.Address.Bytes()
			switch ac.Action {
			case rpctypes.ActionUpsert:
				stateChanges = append(stateChanges, statecache.StateChange{Key: key, Value: ac.Data})
			case rpctypes.ActionUpsertCode:
				stateChanges = append(stateChanges, statecache.StateChange{Key: key, Value: ac.Data})
				codeChanges = append(codeChanges, statecache.StateChange{Key: key, Value: ac.Code})
			case rpctypes.ActionRemove:
				stateChanges = append(stateChanges, statecache.StateChange{Key: key, Deleted: true})
				codeChanges = append(codeChanges, statecache.StateChange{Key: key, Deleted: true})
			case rpctypes.ActionCode:
				codeChanges = append(codeChanges, statecache.StateChange{Key: key, Value: ac.Code})
			case rpctypes.ActionStorage:
				// Storage changes are not applied to the coherent cache,
				// which holds only account and code entries here; the
				// cache's WithStorage setting is not consulted.
			}
		}
		s.cache.OnNewBlock(batch.DatabaseViewId, stateChanges, codeChanges)
	}
}
