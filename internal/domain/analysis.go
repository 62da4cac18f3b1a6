// Package domain defines the analysis result types shared across the service.
package domain

// Severity levels for on-chain findings and narrative threats.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// OnChainFinding is one detected condition from the heuristic scorer.
type OnChainFinding struct {
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// OnChainAnalysis is the deterministic inspection result for one program.
// Immutable after construction; lifetime is a single request.
type OnChainAnalysis struct {
	ProgramID        string           `json:"programId"`
	UpgradeAuthority string           `json:"upgradeAuthority"`
	TokenAccounts    string           `json:"tokenAccounts"`
	PDACount         string           `json:"pdaCount"`
	SecurityScore    int              `json:"securityScore"`
	Findings         []OnChainFinding `json:"findings"`
}

// SecurityThreat is one issue reported by the narrative generator.
type SecurityThreat struct {
	Level       Severity `json:"level"`
	Description string   `json:"description"`
	Impact      string   `json:"impact"`
	Remediation string   `json:"remediation"`
	Category    string   `json:"category,omitempty"`
}

// SecurityAnalysisResult is the merged response returned to the caller.
// OnChainAnalysis is nil when no program id was supplied or when the
// on-chain branch degraded; Degraded names the branches that failed.
type SecurityAnalysisResult struct {
	Score           int              `json:"score"`
	Threats         []SecurityThreat `json:"threats"`
	Recommendations []string         `json:"recommendations"`
	OnChainAnalysis *OnChainAnalysis `json:"onChainAnalysis,omitempty"`
	Degraded        []string         `json:"degraded,omitempty"`
}

// ClampScore bounds a score to [0,100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
