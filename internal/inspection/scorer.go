package inspection

import (
	"repo-sentinel/internal/domain"
	"repo-sentinel/internal/solana"
)

// Scoring rule constants. Deductions are independent and additive.
const (
	baseScore               = 80
	upgradeAuthorityPenalty = 10
	programSizePenalty      = 5

	// largeSizeThreshold is the data length above which a program is
	// flagged as large.
	largeSizeThreshold = 1_000_000
)

// Score maps the two fetched account records to a bounded score and a
// findings list. Pure function: no network, no clock, identical inputs
// yield identical outputs. programDataAccount is nil when the program has
// no program-data account.
func Score(programAccount *solana.AccountInfo, programDataAccount *solana.AccountInfo) (int, []domain.OnChainFinding) {
	score := baseScore
	findings := []domain.OnChainFinding{}

	if programDataAccount != nil {
		score -= upgradeAuthorityPenalty
		findings = append(findings, domain.OnChainFinding{
			Type:        "Upgrade Authority",
			Severity:    domain.SeverityMedium,
			Description: "Program is upgradeable; a compromised upgrade authority can replace the deployed code",
		})
	}

	if programAccount.DataLength() > largeSizeThreshold {
		score -= programSizePenalty
		findings = append(findings, domain.OnChainFinding{
			Type:        "Program Size",
			Severity:    domain.SeverityLow,
			Description: "Large program size indicates complexity, which widens the surface for defects",
		})
	}

	return domain.ClampScore(score), findings
}
