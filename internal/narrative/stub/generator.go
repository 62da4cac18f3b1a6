package stub

import (
	"context"
	"sync/atomic"
)

// Generator implements narrative.Generator for testing.
type Generator struct {
	// Response is returned verbatim by Generate.
	Response string
	// Err makes Generate fail, simulating an upstream failure.
	Err error

	// Calls counts Generate invocations; LastPrompt holds the most
	// recent prompt for assertions.
	Calls      atomic.Int32
	LastPrompt string
}

// Generate returns the configured response or error.
func (g *Generator) Generate(_ context.Context, prompt string) (string, error) {
	g.Calls.Add(1)
	g.LastPrompt = prompt
	if g.Err != nil {
		return "", g.Err
	}
	return g.Response, nil
}
