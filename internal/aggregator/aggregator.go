// Package aggregator orchestrates the on-chain and narrative analysis
// branches and merges their results into one response.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log"

	"repo-sentinel/internal/domain"
	"repo-sentinel/internal/inspection"
	"repo-sentinel/internal/narrative"
	"repo-sentinel/internal/observability"
	"repo-sentinel/internal/rpcpool"
)

// ErrMissingRepoURL is returned when the request carries no repository URL.
var ErrMissingRepoURL = errors.New("repository URL is required")

// BranchOnChain names the on-chain branch in degraded-component lists.
const BranchOnChain = "onChainAnalysis"

// Request is one analysis request. ProgramID is optional; when empty the
// on-chain branch is skipped entirely.
type Request struct {
	RepoURL   string `json:"repoUrl"`
	ProgramID string `json:"programId,omitempty"`
}

// Options for creating an Aggregator.
type Options struct {
	Pool      *rpcpool.Pool
	Inspector *inspection.Inspector
	Adapter   *narrative.Adapter
	// RaceProbes selects concurrent endpoint probing instead of the
	// sequential list-order scan.
	RaceProbes bool
	Logger     *log.Logger
}

// Aggregator runs both analysis branches for a request. The branches are
// independent until the merge: a transient on-chain infrastructure failure
// degrades the response instead of discarding a good narrative result,
// while caller-correctable program-id errors and any narrative failure
// abort the request.
type Aggregator struct {
	pool       *rpcpool.Pool
	inspector  *inspection.Inspector
	adapter    *narrative.Adapter
	raceProbes bool
	logger     *log.Logger
}

// New creates an Aggregator.
func New(opts Options) *Aggregator {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[aggregator] ", log.LstdFlags|log.Lshortfile)
	}
	return &Aggregator{
		pool:       opts.Pool,
		inspector:  opts.Inspector,
		adapter:    opts.Adapter,
		raceProbes: opts.RaceProbes,
		logger:     logger,
	}
}

// Handle validates the request, runs the branches and merges the outcome.
func (a *Aggregator) Handle(ctx context.Context, req Request) (*domain.SecurityAnalysisResult, error) {
	if req.RepoURL == "" {
		return nil, ErrMissingRepoURL
	}

	var (
		onChain  *domain.OnChainAnalysis
		degraded []string
	)

	if req.ProgramID != "" {
		analysis, err := a.runOnChain(ctx, req.ProgramID)
		switch {
		case err == nil:
			onChain = analysis
		case errors.Is(err, inspection.ErrInvalidProgramID),
			errors.Is(err, inspection.ErrProgramNotFound):
			// Caller-correctable: the request itself is wrong.
			return nil, err
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			// Infrastructure failure: keep the narrative branch alive
			// and report the missing component.
			a.logger.Printf("on-chain branch degraded for %s: %v", req.ProgramID, err)
			observability.RecordDegraded(BranchOnChain)
			degraded = append(degraded, BranchOnChain)
		}
	}

	narr, err := a.adapter.Analyze(ctx, req.RepoURL, onChain)
	if err != nil {
		// The narrative branch supplies the top-level score; without it
		// there is nothing to return.
		return nil, err
	}

	return &domain.SecurityAnalysisResult{
		Score:           narr.Score,
		Threats:         narr.Threats,
		Recommendations: narr.Recommendations,
		OnChainAnalysis: onChain,
		Degraded:        degraded,
	}, nil
}

// runOnChain acquires a connection and inspects the program. The
// connection is owned by this request and discarded afterwards.
func (a *Aggregator) runOnChain(ctx context.Context, programID string) (*domain.OnChainAnalysis, error) {
	acquire := a.pool.Acquire
	if a.raceProbes {
		acquire = a.pool.AcquireRace
	}

	conn, err := acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	return a.inspector.Inspect(ctx, conn, programID)
}
