package indicator

// DefaultSwingWindow is the symmetric window used for swing detection when
// a condition does not override it. A bar is a swing high when its value is
// the maximum of the window bars on each side. Fixed here so structural
// conditions stay deterministic across runs.
const DefaultSwingWindow = 3

// SwingHighs returns the values of swing highs in order of appearance
func SwingHighs(values []float64, window int) []float64 {
	idx := swingIndexes(values, window, true)
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}

// SwingLows returns the values of swing lows in order of appearance
func SwingLows(values []float64, window int) []float64 {
	idx := swingIndexes(values, window, false)
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}

// SwingLowIndexes returns the positions of swing lows within values
func SwingLowIndexes(values []float64, window int) []int {
	return swingIndexes(values, window, false)
}

func swingIndexes(values []float64, window int, high bool) []int {
	var out []int
	for i := window; i < len(values)-window; i++ {
		isSwing := true
		for j := 1; j <= window; j++ {
			if high {
				if values[i] < values[i-j] || values[i] < values[i+j] {
					isSwing = false
					break
				}
			} else {
				if values[i] > values[i-j] || values[i] > values[i+j] {
					isSwing = false
					break
				}
			}
		}
		if isSwing {
			out = append(out, i)
		}
	}
	return out
}

// Tail returns the last n elements of values (all of them when n exceeds
// the length)
func Tail(values []float64, n int) []float64 {
	if n >= len(values) {
		return values
	}
	return values[len(values)-n:]
}
