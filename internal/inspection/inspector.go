// Package inspection resolves a program's upgrade posture from on-chain
// account records and scores it.
package inspection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"repo-sentinel/internal/domain"
	"repo-sentinel/internal/observability"
	"repo-sentinel/internal/rpcpool"
	"repo-sentinel/internal/solana"
)

// Inspection errors. Both are caller-correctable: the supplied program id
// either does not decode or does not exist on-chain.
var (
	ErrInvalidProgramID = errors.New("invalid program identifier")
	ErrProgramNotFound  = errors.New("program account not found")
)

// countPlaceholder stands in for the token-account and PDA counts, which a
// single account fetch cannot produce. Enumerating them needs a full
// program account scan this access pattern does not have; the limit is
// reported instead of a fabricated number.
const countPlaceholder = "unavailable (requires full program account scan)"

// NoAuthority marks a program with no program-data account: immutable,
// nothing can replace its code.
const NoAuthority = "None"

// Inspector fetches program accounts and classifies upgrade posture.
type Inspector struct {
	logger *log.Logger
}

// NewInspector creates an Inspector.
func NewInspector(logger *log.Logger) *Inspector {
	if logger == nil {
		logger = log.New(log.Writer(), "[inspection] ", log.LstdFlags|log.Lshortfile)
	}
	return &Inspector{logger: logger}
}

// Inspect resolves the program account and its derived program-data
// account, then scores the pair.
//
// The program-data account may legitimately not exist: absence means the
// program is not upgradeable via the upgradeable loader, not an error.
func (i *Inspector) Inspect(ctx context.Context, conn *rpcpool.Conn, programID string) (*domain.OnChainAnalysis, error) {
	if _, err := solana.DecodePubkey(programID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProgramID, err)
	}

	start := time.Now()
	programAccount, err := conn.Client.GetAccountInfo(ctx, programID)
	observability.RecordRPCLatency("getAccountInfo", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("fetch program account: %w", err)
	}
	if programAccount == nil {
		return nil, fmt.Errorf("%w: %s", ErrProgramNotFound, programID)
	}

	programDataAddr, err := solana.FindProgramDataAddress(programID)
	if err != nil {
		return nil, fmt.Errorf("derive program data address: %w", err)
	}

	start = time.Now()
	programDataAccount, err := conn.Client.GetAccountInfo(ctx, programDataAddr)
	observability.RecordRPCLatency("getAccountInfo", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("fetch program data account: %w", err)
	}

	upgradeAuthority := NoAuthority
	if programDataAccount != nil {
		upgradeAuthority = programDataAccount.Owner
	}

	score, findings := Score(programAccount, programDataAccount)

	i.logger.Printf("inspected %s via %s: upgradeable=%v score=%d findings=%d",
		programID, conn.Endpoint, programDataAccount != nil, score, len(findings))

	return &domain.OnChainAnalysis{
		ProgramID:        programID,
		UpgradeAuthority: upgradeAuthority,
		TokenAccounts:    countPlaceholder,
		PDACount:         countPlaceholder,
		SecurityScore:    score,
		Findings:         findings,
	}, nil
}
