package optim

import "math"

// BCEWithLogits returns the positive-weighted binary cross-entropy of one
// sample's logits against its multi-hot targets, averaged over labels.
// posWeight scales the loss of positive targets, one weight per label. When
// dLogits is non-nil the logit gradient, scaled by gradScale, is written
// into it.
func BCEWithLogits(logits, targets, posWeight []float64, gradScale float64, dLogits []float64) float64 {
	var loss float64
	c := float64(len(logits))
	for j, z := range logits {
		if targets[j] > 0 {
			loss += posWeight[j] * softplus(-z)
			if dLogits != nil {
				dLogits[j] = -posWeight[j] * (1 - sigmoid(z)) * gradScale
			}
		} else {
			loss += softplus(z)
			if dLogits != nil {
				dLogits[j] = sigmoid(z) * gradScale
			}
		}
	}
	return loss / c
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus computes ln(1 + e^x) without overflow.
func softplus(x float64) float64 {
	if x > 35 {
		return x
	}
	return math.Log1p(math.Exp(x))
}
