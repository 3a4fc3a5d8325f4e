package model

import "time"

// Prediction is fineprint's output type: one classified provision.
type Prediction struct {
	Text      string       `json:"provision,omitempty"` // original clause text (omitted at minimal verbosity)
	Labels    []string     `json:"labels"`              // labels passing their per-label thresholds
	Scores    []LabelScore `json:"scores,omitempty"`    // raw scores for the predicted labels
	Model     string       `json:"model"`               // model kind that produced the prediction
	Timestamp time.Time    `json:"timestamp"`
}
