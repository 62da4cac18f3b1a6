package rpcpool

import (
	"context"
	"fmt"
	"log"
	"time"

	"repo-sentinel/internal/solana"
)

// DefaultStallThreshold is how long slot notifications may be absent
// before the cached endpoint is considered suspect.
const DefaultStallThreshold = 30 * time.Second

// Watcher holds a slot subscription against the ledger and invalidates the
// pool's cached endpoint when the slot stream stalls. The next request then
// re-probes the full list instead of trusting a possibly dead endpoint.
type Watcher struct {
	pool       *Pool
	wsEndpoint string
	stall      time.Duration
	logger     *log.Logger

	// dial is injectable for tests.
	dial func(ctx context.Context, endpoint string) (solana.WSClient, error)
}

// NewWatcher creates a Watcher for the given WebSocket endpoint.
func NewWatcher(pool *Pool, wsEndpoint string, stall time.Duration, logger *log.Logger) *Watcher {
	if stall <= 0 {
		stall = DefaultStallThreshold
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[watcher] ", log.LstdFlags|log.Lshortfile)
	}
	return &Watcher{
		pool:       pool,
		wsEndpoint: wsEndpoint,
		stall:      stall,
		logger:     logger,
		dial: func(ctx context.Context, endpoint string) (solana.WSClient, error) {
			return solana.NewWSClient(ctx, endpoint, nil)
		},
	}
}

// Run subscribes to slot notifications and blocks until ctx is done.
// A stalled stream invalidates the pool cache; the subscription itself
// reconnects via the WS client.
func (w *Watcher) Run(ctx context.Context) error {
	client, err := w.dial(ctx, w.wsEndpoint)
	if err != nil {
		return fmt.Errorf("dial slot watcher: %w", err)
	}
	defer client.Close()

	slots, err := client.SubscribeSlots(ctx)
	if err != nil {
		return fmt.Errorf("subscribe slots: %w", err)
	}

	w.logger.Printf("watching slots on %s (stall threshold %v)", w.wsEndpoint, w.stall)

	timer := time.NewTimer(w.stall)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-slots:
			if !ok {
				return fmt.Errorf("slot subscription closed")
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.stall)
		case <-timer.C:
			if last := w.pool.LastGood(); last != "" {
				w.logger.Printf("slot stream stalled for %v, invalidating cached endpoint %s", w.stall, last)
				w.pool.Invalidate()
			}
			timer.Reset(w.stall)
		}
	}
}
