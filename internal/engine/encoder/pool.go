package encoder

// poolCLS extracts the hidden state of each sequence's first token, the
// [CLS] position. Returns flat [batchSize * dim].
func poolCLS(hidden []float32, batchSize, seqLen, dim int64) []float64 {
	out := make([]float64, batchSize*dim)
	for b := int64(0); b < batchSize; b++ {
		tok := hidden[b*seqLen*dim : b*seqLen*dim+dim]
		row := out[b*dim : (b+1)*dim]
		for d, v := range tok {
			row[d] = float64(v)
		}
	}
	return out
}

// poolMean averages the hidden states over non-padding positions, per the
// attention mask. All-padding rows stay zero. Returns flat [batchSize * dim].
func poolMean(hidden []float32, mask []int64, batchSize, seqLen, dim int64) []float64 {
	out := make([]float64, batchSize*dim)
	for b := int64(0); b < batchSize; b++ {
		maskOff := b * seqLen
		hiddenOff := b * seqLen * dim
		row := out[b*dim : (b+1)*dim]

		var count float64
		for s := int64(0); s < seqLen; s++ {
			if mask[maskOff+s] != 1 {
				continue
			}
			count++
			tok := hidden[hiddenOff+s*dim : hiddenOff+(s+1)*dim]
			for d, v := range tok {
				row[d] += float64(v)
			}
		}
		if count == 0 {
			continue
		}
		for d := range row {
			row[d] /= count
		}
	}
	return out
}
