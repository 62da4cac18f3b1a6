// Package rpcpool selects a live RPC endpoint from an ordered pool.
package rpcpool

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"repo-sentinel/internal/observability"
	"repo-sentinel/internal/solana"
)

// ErrNoEndpointAvailable is returned when every endpoint in the pool
// failed its liveness probe.
var ErrNoEndpointAvailable = errors.New("no RPC endpoint available")

// DefaultProbeTimeout bounds a single endpoint probe.
const DefaultProbeTimeout = 3 * time.Second

// Conn is an established, live handle to one endpoint. It is owned by the
// request that acquired it and is not reused across requests.
type Conn struct {
	Endpoint string
	Client   solana.RPCClient
	Slot     int64 // slot height observed by the liveness probe
}

// ClientFactory builds an RPC client for an endpoint. Injectable for tests.
type ClientFactory func(endpoint string) solana.RPCClient

// Options for creating a Pool.
type Options struct {
	// Endpoints is the ordered candidate list; first-listed is most preferred.
	Endpoints []string
	// ProbeTimeout bounds each individual probe. Defaults to DefaultProbeTimeout.
	ProbeTimeout time.Duration
	// Factory overrides RPC client construction.
	Factory ClientFactory
	Logger  *log.Logger
}

// Pool probes endpoints in list order and hands out connections. A
// successful endpoint is cached and tried first on the next request; the
// full scan only re-runs once the cached endpoint fails.
type Pool struct {
	endpoints    []string
	probeTimeout time.Duration
	factory      ClientFactory
	logger       *log.Logger

	mu       sync.Mutex
	lastGood string
}

// New creates a Pool.
func New(opts Options) *Pool {
	p := &Pool{
		endpoints:    opts.Endpoints,
		probeTimeout: opts.ProbeTimeout,
		factory:      opts.Factory,
		logger:       opts.Logger,
	}
	if p.probeTimeout <= 0 {
		p.probeTimeout = DefaultProbeTimeout
	}
	if p.factory == nil {
		// The probe budget is enforced per-call by probe()'s context; the
		// client itself keeps the default timeout so work calls made
		// through the Conn are not capped at the probe budget.
		p.factory = func(endpoint string) solana.RPCClient {
			return solana.NewHTTPClient(endpoint, solana.WithMaxRetries(0))
		}
	}
	if p.logger == nil {
		p.logger = log.New(log.Writer(), "[rpcpool] ", log.LstdFlags|log.Lshortfile)
	}
	return p
}

// Acquire probes candidates sequentially and returns the first one that
// answers the liveness probe. The cached last-good endpoint, when set, is
// tried before the rest of the list.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	if len(p.endpoints) == 0 {
		return nil, fmt.Errorf("empty endpoint pool: %w", ErrNoEndpointAvailable)
	}

	for _, endpoint := range p.candidates() {
		conn, err := p.probe(ctx, endpoint)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Printf("endpoint %s failed probe: %v", endpoint, err)
			p.forget(endpoint)
			continue
		}
		p.remember(endpoint)
		return conn, nil
	}

	return nil, ErrNoEndpointAvailable
}

// AcquireRace probes all candidates concurrently and returns the first
// success; losing probes are cancelled. Worst-case latency is one probe
// timeout instead of the sum over the pool.
func (p *Pool) AcquireRace(ctx context.Context) (*Conn, error) {
	if len(p.endpoints) == 0 {
		return nil, fmt.Errorf("empty endpoint pool: %w", ErrNoEndpointAvailable)
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		conn *Conn
		err  error
	}

	candidates := p.candidates()
	results := make(chan outcome, len(candidates))

	for _, endpoint := range candidates {
		go func(endpoint string) {
			conn, err := p.probe(raceCtx, endpoint)
			results <- outcome{conn: conn, err: err}
		}(endpoint)
	}

	var lastErr error
	for range candidates {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-results:
			if res.err != nil {
				lastErr = res.err
				continue
			}
			p.remember(res.conn.Endpoint)
			return res.conn, nil
		}
	}

	if lastErr != nil {
		p.logger.Printf("all endpoints failed, last error: %v", lastErr)
	}
	return nil, ErrNoEndpointAvailable
}

// probe opens a client and issues the cheap liveness query (slot height).
func (p *Pool) probe(ctx context.Context, endpoint string) (*Conn, error) {
	probeCtx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	client := p.factory(endpoint)
	start := time.Now()
	slot, err := client.GetSlot(probeCtx)
	observability.RecordProbe(endpoint, err == nil, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("liveness probe: %w", err)
	}

	return &Conn{Endpoint: endpoint, Client: client, Slot: slot}, nil
}

// candidates returns the probe order: cached last-good endpoint first,
// then the configured list minus that endpoint.
func (p *Pool) candidates() []string {
	p.mu.Lock()
	lastGood := p.lastGood
	p.mu.Unlock()

	if lastGood == "" {
		return p.endpoints
	}

	out := make([]string, 0, len(p.endpoints))
	out = append(out, lastGood)
	for _, e := range p.endpoints {
		if e != lastGood {
			out = append(out, e)
		}
	}
	return out
}

func (p *Pool) remember(endpoint string) {
	p.mu.Lock()
	p.lastGood = endpoint
	p.mu.Unlock()
}

func (p *Pool) forget(endpoint string) {
	p.mu.Lock()
	if p.lastGood == endpoint {
		p.lastGood = ""
	}
	p.mu.Unlock()
}

// Invalidate drops the cached last-good endpoint so the next Acquire
// re-scans the full list.
func (p *Pool) Invalidate() {
	p.mu.Lock()
	p.lastGood = ""
	p.mu.Unlock()
}

// LastGood returns the cached endpoint, or "" when none is cached.
func (p *Pool) LastGood() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastGood
}
