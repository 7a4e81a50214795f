package audio

// Resample converts samples between rates using linear interpolation.
// The quality is sufficient here: the reference buffer conditions a
// generative model, it is not played back.
func Resample(in []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(in) == 0 {
		return in
	}

	ratio := float64(toRate) / float64(fromRate)
	outLen := int(float64(len(in)) * ratio)
	if outLen < 1 {
		outLen = 1
	}

	out := make([]float32, outLen)
	for i := range out {
		pos := float64(i) / ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}

	return out
}
