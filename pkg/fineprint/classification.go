package fineprint

// Classification is one classified provision.
// This is the stable public type: internal representations may evolve
// independently without breaking consumers.
type Classification struct {
	Text   string       `json:"provision"`        // original clause text
	Labels []string     `json:"labels"`           // labels passing their thresholds
	Scores []LabelScore `json:"scores,omitempty"` // scores for the predicted labels
	Model  string       `json:"model"`            // model kind that produced the classification
}

// LabelScore pairs a provision-type label with a model score.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}
