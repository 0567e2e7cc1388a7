package indicator

import (
	"reflect"
	"testing"
)

func TestSwingHighsAndLows(t *testing.T) {
	// Peaks at 110 and 115, trough at 95
	values := []float64{
		100, 102, 104, 110, 104, 102, 100,
		98, 96, 95, 97, 99, 101,
		105, 110, 115, 110, 105, 101, 100,
	}

	highs := SwingHighs(values, 3)
	if !reflect.DeepEqual(highs, []float64{110, 115}) {
		t.Errorf("swing highs = %v, want [110 115]", highs)
	}

	lows := SwingLows(values, 3)
	if !reflect.DeepEqual(lows, []float64{95}) {
		t.Errorf("swing lows = %v, want [95]", lows)
	}

	lowIdx := SwingLowIndexes(values, 3)
	if !reflect.DeepEqual(lowIdx, []int{9}) {
		t.Errorf("swing low indexes = %v, want [9]", lowIdx)
	}
}

func TestSwingEdgesNeverQualify(t *testing.T) {
	// The global max sits at the boundary where no full window exists
	values := []float64{120, 110, 100, 90, 80, 70, 60, 50}
	if highs := SwingHighs(values, 3); len(highs) != 0 {
		t.Errorf("boundary max should not count as a swing, got %v", highs)
	}
	if lows := SwingLows(values, 3); len(lows) != 0 {
		t.Errorf("boundary min should not count as a swing, got %v", lows)
	}
}

func TestTail(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	if got := Tail(values, 2); !reflect.DeepEqual(got, []float64{4, 5}) {
		t.Errorf("Tail(2) = %v, want [4 5]", got)
	}
	if got := Tail(values, 10); !reflect.DeepEqual(got, values) {
		t.Errorf("Tail(10) = %v, want the whole slice", got)
	}
}
