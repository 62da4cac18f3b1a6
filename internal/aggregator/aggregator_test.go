package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"repo-sentinel/internal/inspection"
	"repo-sentinel/internal/narrative"
	narrativestub "repo-sentinel/internal/narrative/stub"
	"repo-sentinel/internal/rpcpool"
	"repo-sentinel/internal/solana"
	solanastub "repo-sentinel/internal/solana/stub"
)

const (
	testRepoURL   = "https://github.com/example/repo"
	testProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

const narrativeResponse = `{
	"score": 72,
	"threats": [{"level": "high", "description": "d", "impact": "i", "remediation": "r"}],
	"recommendations": ["Pin dependency versions"]
}`

// harness wires an aggregator over stub RPC and generator backends.
type harness struct {
	rpc *solanastub.RPCClient
	gen *narrativestub.Generator
	agg *Aggregator
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	rpc := solanastub.NewRPCClient()
	pool := rpcpool.New(rpcpool.Options{
		Endpoints:    []string{"stub"},
		ProbeTimeout: 100 * time.Millisecond,
		Factory: func(string) solana.RPCClient {
			return rpc
		},
	})
	gen := &narrativestub.Generator{Response: narrativeResponse}

	return &harness{
		rpc: rpc,
		gen: gen,
		agg: New(Options{
			Pool:      pool,
			Inspector: inspection.NewInspector(nil),
			Adapter:   narrative.NewAdapter(gen, nil),
		}),
	}
}

func TestAggregator_RepoOnly(t *testing.T) {
	h := newHarness(t)

	result, err := h.agg.Handle(context.Background(), Request{RepoURL: testRepoURL})
	require.NoError(t, err)

	require.Equal(t, 72, result.Score)
	require.Nil(t, result.OnChainAnalysis)
	require.Empty(t, result.Degraded)
	require.Equal(t, int32(0), h.rpc.SlotCalls.Load(), "no program id means no RPC traffic")
}

func TestAggregator_RepoAndProgram(t *testing.T) {
	h := newHarness(t)
	h.rpc.AddAccount(testProgramID, &solana.AccountInfo{Executable: true})

	result, err := h.agg.Handle(context.Background(), Request{
		RepoURL:   testRepoURL,
		ProgramID: testProgramID,
	})
	require.NoError(t, err)

	require.Equal(t, 72, result.Score)
	require.NotNil(t, result.OnChainAnalysis)
	require.Equal(t, testProgramID, result.OnChainAnalysis.ProgramID)
	require.Equal(t, 80, result.OnChainAnalysis.SecurityScore)
	require.Empty(t, result.Degraded)

	// The on-chain result feeds the narrative prompt.
	require.Contains(t, h.gen.LastPrompt, testProgramID)
}

func TestAggregator_MissingRepoURL(t *testing.T) {
	h := newHarness(t)

	_, err := h.agg.Handle(context.Background(), Request{ProgramID: testProgramID})
	require.ErrorIs(t, err, ErrMissingRepoURL)
	require.Equal(t, int32(0), h.gen.Calls.Load(), "validation failure must not reach the generator")
}

func TestAggregator_InvalidProgramID(t *testing.T) {
	h := newHarness(t)

	_, err := h.agg.Handle(context.Background(), Request{
		RepoURL:   testRepoURL,
		ProgramID: "not-base58!!",
	})
	require.ErrorIs(t, err, inspection.ErrInvalidProgramID)
	require.Equal(t, int32(0), h.gen.Calls.Load())
}

func TestAggregator_ProgramNotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.agg.Handle(context.Background(), Request{
		RepoURL:   testRepoURL,
		ProgramID: testProgramID,
	})
	require.ErrorIs(t, err, inspection.ErrProgramNotFound)
	require.Equal(t, int32(0), h.gen.Calls.Load())
}

func TestAggregator_InfraFailureDegradesOnChainBranch(t *testing.T) {
	h := newHarness(t)
	h.rpc.SlotErr = errors.New("connection refused")

	result, err := h.agg.Handle(context.Background(), Request{
		RepoURL:   testRepoURL,
		ProgramID: testProgramID,
	})
	require.NoError(t, err)

	require.Equal(t, 72, result.Score)
	require.Nil(t, result.OnChainAnalysis)
	require.Equal(t, []string{BranchOnChain}, result.Degraded)
}

func TestAggregator_TransportFailureDegradesOnChainBranch(t *testing.T) {
	h := newHarness(t)
	h.rpc.AccountErr = errors.New("connection reset")

	result, err := h.agg.Handle(context.Background(), Request{
		RepoURL:   testRepoURL,
		ProgramID: testProgramID,
	})
	require.NoError(t, err)
	require.Nil(t, result.OnChainAnalysis)
	require.Equal(t, []string{BranchOnChain}, result.Degraded)
}

func TestAggregator_NarrativeFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.rpc.AddAccount(testProgramID, &solana.AccountInfo{Executable: true})
	h.gen.Err = errors.New("quota exceeded")

	_, err := h.agg.Handle(context.Background(), Request{
		RepoURL:   testRepoURL,
		ProgramID: testProgramID,
	})
	require.ErrorIs(t, err, narrative.ErrUpstream)
}

func TestAggregator_NarrativeSchemaViolationAborts(t *testing.T) {
	h := newHarness(t)
	h.gen.Response = "not json"

	_, err := h.agg.Handle(context.Background(), Request{RepoURL: testRepoURL})
	require.ErrorIs(t, err, narrative.ErrSchemaViolation)
}

func TestAggregator_ContextCancelledAborts(t *testing.T) {
	h := newHarness(t)
	h.rpc.SlotErr = errors.New("connection refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.agg.Handle(ctx, Request{
		RepoURL:   testRepoURL,
		ProgramID: testProgramID,
	})
	require.ErrorIs(t, err, context.Canceled)
}
