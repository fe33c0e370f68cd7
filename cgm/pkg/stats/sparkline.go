package stats

// Nine intensity levels, a blank plus eight block glyphs.
var sparkLevels = []rune(" ▁▂▃▄▅▆▇█")

// Sparkline maps each value to a block glyph scaled by the input's own
// min/max. Output length equals input length.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}

	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return SparklineScaled(values, min, max)
}

// SparklineScaled maps each value to a block glyph by linear position in
// [minVal, maxVal]. A degenerate range maps everything to one level.
func SparklineScaled(values []float64, minVal, maxVal float64) string {
	if len(values) == 0 {
		return ""
	}

	out := make([]rune, len(values))
	span := maxVal - minVal
	for i, v := range values {
		// Flat range renders at the middle level.
		level := len(sparkLevels) / 2
		if span > 0 {
			level = int((v - minVal) / span * float64(len(sparkLevels)-1))
			if level < 0 {
				level = 0
			}
			if level >= len(sparkLevels) {
				level = len(sparkLevels) - 1
			}
		}
		out[i] = sparkLevels[level]
	}
	return string(out)
}
