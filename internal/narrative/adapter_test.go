package narrative

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"repo-sentinel/internal/domain"
	"repo-sentinel/internal/narrative/stub"
)

const validResponse = `{
	"score": 72,
	"threats": [
		{"level": "HIGH", "description": "Unverified build", "impact": "Deployed code may differ from source", "remediation": "Publish a verified build"}
	],
	"recommendations": ["Pin dependency versions"]
}`

func TestAdapter_ValidResponse(t *testing.T) {
	gen := &stub.Generator{Response: validResponse}
	adapter := NewAdapter(gen, nil)

	result, err := adapter.Analyze(context.Background(), "https://github.com/example/repo", nil)
	require.NoError(t, err)

	require.Equal(t, 72, result.Score)
	require.Len(t, result.Threats, 1)
	require.Equal(t, domain.SeverityHigh, result.Threats[0].Level)
	require.Equal(t, []string{"Pin dependency versions"}, result.Recommendations)
}

func TestAdapter_FencedResponse(t *testing.T) {
	gen := &stub.Generator{Response: "```json\n" + validResponse + "\n```"}
	adapter := NewAdapter(gen, nil)

	result, err := adapter.Analyze(context.Background(), "https://github.com/example/repo", nil)
	require.NoError(t, err)
	require.Equal(t, 72, result.Score)
}

func TestAdapter_UpstreamFailure(t *testing.T) {
	gen := &stub.Generator{Err: errors.New("quota exceeded")}
	adapter := NewAdapter(gen, nil)

	_, err := adapter.Analyze(context.Background(), "https://github.com/example/repo", nil)
	require.ErrorIs(t, err, ErrUpstream)
}

func TestAdapter_NonJSONResponse(t *testing.T) {
	gen := &stub.Generator{Response: "I could not analyze this repository, sorry."}
	adapter := NewAdapter(gen, nil)

	_, err := adapter.Analyze(context.Background(), "https://github.com/example/repo", nil)
	require.ErrorIs(t, err, ErrSchemaViolation)
}

func TestAdapter_MissingRequiredFields(t *testing.T) {
	cases := map[string]string{
		"no score":           `{"threats": [], "recommendations": []}`,
		"no threats":         `{"score": 50, "recommendations": []}`,
		"no recommendations": `{"score": 50, "threats": []}`,
	}

	for name, response := range cases {
		t.Run(name, func(t *testing.T) {
			gen := &stub.Generator{Response: response}
			adapter := NewAdapter(gen, nil)

			_, err := adapter.Analyze(context.Background(), "https://github.com/example/repo", nil)
			require.ErrorIs(t, err, ErrSchemaViolation)
		})
	}
}

func TestAdapter_ZeroScoreIsNotMissing(t *testing.T) {
	gen := &stub.Generator{Response: `{"score": 0, "threats": [], "recommendations": []}`}
	adapter := NewAdapter(gen, nil)

	result, err := adapter.Analyze(context.Background(), "https://github.com/example/repo", nil)
	require.NoError(t, err)
	require.Equal(t, 0, result.Score)
}

func TestAdapter_ScoreClamped(t *testing.T) {
	cases := map[string]struct {
		response string
		want     int
	}{
		"above range": {`{"score": 250, "threats": [], "recommendations": []}`, 100},
		"below range": {`{"score": -10, "threats": [], "recommendations": []}`, 0},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			gen := &stub.Generator{Response: tc.response}
			adapter := NewAdapter(gen, nil)

			result, err := adapter.Analyze(context.Background(), "https://github.com/example/repo", nil)
			require.NoError(t, err)
			require.Equal(t, tc.want, result.Score)
		})
	}
}

func TestAdapter_UnknownSeverityFoldsToMedium(t *testing.T) {
	gen := &stub.Generator{Response: `{
		"score": 60,
		"threats": [{"level": "catastrophic", "description": "d", "impact": "i", "remediation": "r"}],
		"recommendations": []
	}`}
	adapter := NewAdapter(gen, nil)

	result, err := adapter.Analyze(context.Background(), "https://github.com/example/repo", nil)
	require.NoError(t, err)
	require.Equal(t, domain.SeverityMedium, result.Threats[0].Level)
}

func TestAdapter_PromptCarriesRepoURL(t *testing.T) {
	gen := &stub.Generator{Response: validResponse}
	adapter := NewAdapter(gen, nil)

	_, err := adapter.Analyze(context.Background(), "https://github.com/example/repo", nil)
	require.NoError(t, err)
	require.Contains(t, gen.LastPrompt, "https://github.com/example/repo")
	require.True(t, strings.Contains(gen.LastPrompt, "JSON"), "prompt must instruct a JSON response")
}

func TestAdapter_PromptCarriesOnChainContext(t *testing.T) {
	gen := &stub.Generator{Response: validResponse}
	adapter := NewAdapter(gen, nil)

	onChain := &domain.OnChainAnalysis{
		ProgramID:        "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
		UpgradeAuthority: "None",
		SecurityScore:    80,
		Findings:         []domain.OnChainFinding{},
	}

	_, err := adapter.Analyze(context.Background(), "https://github.com/example/repo", onChain)
	require.NoError(t, err)
	require.Contains(t, gen.LastPrompt, "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	require.Contains(t, gen.LastPrompt, `"securityScore":80`)
}

func TestStripFences(t *testing.T) {
	cases := map[string]struct {
		in   string
		want string
	}{
		"bare":            {`{"a":1}`, `{"a":1}`},
		"json fence":      {"```json\n{\"a\":1}\n```", `{"a":1}`},
		"anonymous fence": {"```\n{\"a\":1}\n```", `{"a":1}`},
		"padded":          {"  {\"a\":1}  ", `{"a":1}`},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.want, stripFences(tc.in))
		})
	}
}
