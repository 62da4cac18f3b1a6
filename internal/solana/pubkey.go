package solana

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// UpgradeableLoaderID is the well-known BPF upgradeable loader program.
// Programs deployed through it keep their code and upgrade metadata in a
// separate program-data account derived from the program address.
const UpgradeableLoaderID = "BPFLoaderUpgradeab1e11111111111111111111111"

// PubkeyLength is the byte length of a Solana public key.
const PubkeyLength = 32

// DecodePubkey decodes and validates a base58 public key.
func DecodePubkey(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("empty pubkey")
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode pubkey: %w", err)
	}
	if len(raw) != PubkeyLength {
		return nil, fmt.Errorf("pubkey must be %d bytes, got %d", PubkeyLength, len(raw))
	}
	return raw, nil
}

// FindProgramAddress derives a Program Derived Address for the given seeds
// under programID. It walks bump seeds downward from 255 until the hash
// lands off the ed25519 curve, so the result has no private key. The
// derivation is deterministic: identical inputs always yield the same
// address and bump.
func FindProgramAddress(seeds [][]byte, programID []byte) (string, uint8, error) {
	if len(programID) != PubkeyLength {
		return "", 0, fmt.Errorf("program id must be %d bytes, got %d", PubkeyLength, len(programID))
	}

	for bump := uint8(255); bump > 0; bump-- {
		data := make([]byte, 0)
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, programID...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)

		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:]), bump, nil
		}
	}

	return "", 0, fmt.Errorf("no off-curve address found")
}

// FindProgramDataAddress derives the program-data account address for an
// upgradeable program: seeds = [program address] under the upgradeable
// loader.
func FindProgramDataAddress(programID string) (string, error) {
	programBytes, err := DecodePubkey(programID)
	if err != nil {
		return "", fmt.Errorf("invalid program id: %w", err)
	}
	loaderBytes, err := DecodePubkey(UpgradeableLoaderID)
	if err != nil {
		return "", fmt.Errorf("invalid loader id: %w", err)
	}

	addr, _, err := FindProgramAddress([][]byte{programBytes}, loaderBytes)
	if err != nil {
		return "", fmt.Errorf("derive program data address: %w", err)
	}
	return addr, nil
}

func isOnCurve(point []byte) bool {
	if len(point) != PubkeyLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
