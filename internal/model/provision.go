package model

// Provision is a single labeled contract clause, as read from a JSONL corpus
// line. Labels is the gold label set; it may be empty for unlabeled input.
type Provision struct {
	Text   string   `json:"provision"`
	Labels []string `json:"label"`
	Source string   `json:"source,omitempty"`
}

// LabelScore pairs a label with a model score.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}
