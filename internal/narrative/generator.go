// Package narrative produces the LLM-backed assessment of a repository and
// guards the trust boundary around the model's unstructured output.
package narrative

import (
	"context"
	"errors"
)

// Adapter errors.
var (
	// ErrUpstream is returned when the generator call itself fails
	// (network, auth, rate limit). Not retried.
	ErrUpstream = errors.New("narrative generator call failed")

	// ErrSchemaViolation is returned when the generator's text is not
	// valid JSON or lacks the required top-level fields.
	ErrSchemaViolation = errors.New("narrative response violates expected schema")
)

// Generator is the external text-completion service. Given one prompt it
// returns one text payload which is expected, but not guaranteed, to be
// JSON matching the documented schema.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
