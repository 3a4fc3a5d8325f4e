package output

import (
	"context"
	"fmt"

	"github.com/lexkit/fineprint/internal/model"
)

// Output defines the interface for prediction record destinations.
type Output interface {
	Write(ctx context.Context, pred model.Prediction) error
	Close() error
}

// Verbosity controls how much of each prediction record is emitted.
type Verbosity int

const (
	Minimal  Verbosity = iota // strip provision text and raw scores
	Standard                  // retain everything
	Full                      // retain everything, pretty-printed where supported
)

// ParseVerbosity maps a flag value to a Verbosity.
func ParseVerbosity(s string) (Verbosity, error) {
	switch s {
	case "minimal":
		return Minimal, nil
	case "standard", "":
		return Standard, nil
	case "full":
		return Full, nil
	default:
		return Standard, fmt.Errorf("output: unknown verbosity %q (use minimal, standard, or full)", s)
	}
}
