package output

import (
	"github.com/lexkit/fineprint/internal/model"
)

// FormatPrediction returns a copy of the prediction with fields stripped
// according to verbosity.
// At Minimal: Text and Scores are zeroed (omitted from JSON via omitempty).
// At Standard/Full: all fields preserved.
func FormatPrediction(p model.Prediction, verbosity Verbosity) model.Prediction {
	if verbosity == Minimal {
		p.Text = ""
		p.Scores = nil
	}
	return p
}
