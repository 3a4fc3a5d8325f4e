package model

import "time"

// Run is a recorded experiment: one model evaluated on one corpus under the
// shared threshold-tuning protocol.
type Run struct {
	ID           int64     `json:"id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Model        string    `json:"model"`
	Corpus       string    `json:"corpus"`
	Params       string    `json:"params,omitempty"` // JSON-encoded hyperparameters
	TuneStrategy string    `json:"tune_strategy"`
	TuneSplit    string    `json:"tune_split"`
	EvalSplit    string    `json:"eval_split"`

	MicroPrecision float64 `json:"micro_precision"`
	MicroRecall    float64 `json:"micro_recall"`
	MicroF1        float64 `json:"micro_f1"`
	MacroPrecision float64 `json:"macro_precision"`
	MacroRecall    float64 `json:"macro_recall"`
	MacroF1        float64 `json:"macro_f1"`

	Labels []RunLabel `json:"labels,omitempty"`
}

// RunLabel is the per-label slice of a recorded run.
type RunLabel struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
	Threshold float64 `json:"threshold"`
}
