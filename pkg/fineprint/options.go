package fineprint

type options struct {
	threshold       float64
	labelThresholds map[string]float64
}

// Option configures a Classifier.
type Option func(*options)

// WithThreshold sets the decision threshold applied to every label. Labels
// scoring at or above it are predicted. Default: 0.5.
func WithThreshold(t float64) Option {
	return func(o *options) {
		o.threshold = t
	}
}

// WithLabelThresholds overrides the uniform threshold for specific labels,
// typically with values tuned by the fineprint CLI. Labels the model does
// not score are ignored.
func WithLabelThresholds(th map[string]float64) Option {
	return func(o *options) {
		for label, v := range th {
			o.labelThresholds[label] = v
		}
	}
}

func defaultOptions() options {
	return options{
		threshold:       0.5,
		labelThresholds: map[string]float64{},
	}
}
