package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"repo-sentinel/internal/domain"
	"repo-sentinel/internal/observability"
)

// Result is the validated narrative outcome. It never reaches the response
// boundary unvalidated: score is clamped, levels are normalized, slices
// are non-nil.
type Result struct {
	Score           int                     `json:"score"`
	Threats         []domain.SecurityThreat `json:"threats"`
	Recommendations []string                `json:"recommendations"`
}

// Adapter builds the prompt, calls the generator and validates its output.
type Adapter struct {
	generator Generator
	logger    *log.Logger
}

// NewAdapter creates an Adapter around an injected generator.
func NewAdapter(generator Generator, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = log.New(log.Writer(), "[narrative] ", log.LstdFlags|log.Lshortfile)
	}
	return &Adapter{generator: generator, logger: logger}
}

// Analyze runs one analysis round for the repository. onChain, when
// present, is serialized into the prompt as additional context.
func (a *Adapter) Analyze(ctx context.Context, repoURL string, onChain *domain.OnChainAnalysis) (*Result, error) {
	prompt, err := a.buildPrompt(repoURL, onChain)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	text, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		observability.RecordNarrative(time.Since(start).Seconds(), "upstream")
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	result, err := parseResponse(text)
	if err != nil {
		observability.RecordNarrative(time.Since(start).Seconds(), "schema")
		a.logger.Printf("generator returned unusable payload for %s: %v", repoURL, err)
		return nil, err
	}

	observability.RecordNarrative(time.Since(start).Seconds(), "")
	return result, nil
}

// buildPrompt assembles the fixed template, the repository URL and the
// optional serialized on-chain context into a single prompt.
func (a *Adapter) buildPrompt(repoURL string, onChain *domain.OnChainAnalysis) (string, error) {
	var sb strings.Builder
	sb.WriteString(securityAnalysisPrompt)
	sb.WriteString("\n\nRepository URL: ")
	sb.WriteString(repoURL)

	if onChain != nil {
		ctxJSON, err := json.Marshal(onChain)
		if err != nil {
			return "", fmt.Errorf("marshal on-chain context: %w", err)
		}
		sb.WriteString("\n\nOn-chain program analysis (deterministic, already computed):\n")
		sb.Write(ctxJSON)
		sb.WriteString("\nFactor the on-chain upgrade posture into the overall assessment.")
	}

	return sb.String(), nil
}

// rawResult mirrors the schema the model is instructed to emit. Pointers
// distinguish absent fields from zero values.
type rawResult struct {
	Score           *float64                `json:"score"`
	Threats         []domain.SecurityThreat `json:"threats"`
	Recommendations []string                `json:"recommendations"`
}

// parseResponse parses the generator's text and validates it into a
// Result. Anything short of the required shape is a schema violation.
func parseResponse(text string) (*Result, error) {
	payload := stripFences(text)

	var raw rawResult
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}

	if raw.Score == nil {
		return nil, fmt.Errorf("%w: missing field %q", ErrSchemaViolation, "score")
	}
	if raw.Threats == nil {
		return nil, fmt.Errorf("%w: missing field %q", ErrSchemaViolation, "threats")
	}
	if raw.Recommendations == nil {
		return nil, fmt.Errorf("%w: missing field %q", ErrSchemaViolation, "recommendations")
	}

	threats := make([]domain.SecurityThreat, 0, len(raw.Threats))
	for _, t := range raw.Threats {
		t.Level = normalizeLevel(t.Level)
		threats = append(threats, t)
	}

	return &Result{
		Score:           domain.ClampScore(int(*raw.Score)),
		Threats:         threats,
		Recommendations: raw.Recommendations,
	}, nil
}

// stripFences removes a markdown code fence the model may wrap its JSON in.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// normalizeLevel folds unknown severity strings to medium so untrusted
// enum values cannot leak through to the response.
func normalizeLevel(level domain.Severity) domain.Severity {
	switch domain.Severity(strings.ToLower(string(level))) {
	case domain.SeverityHigh:
		return domain.SeverityHigh
	case domain.SeverityMedium:
		return domain.SeverityMedium
	case domain.SeverityLow:
		return domain.SeverityLow
	default:
		return domain.SeverityMedium
	}
}
