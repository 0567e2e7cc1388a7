package condition

import (
	"errors"
	"testing"
)

func TestParseParamsDefaults(t *testing.T) {
	p, err := ParseParams(PriceAboveMA, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mp, ok := p.(MAParams)
	if !ok {
		t.Fatalf("params type = %T, want MAParams", p)
	}
	if mp.Period != 50 || mp.MAType != "ema" {
		t.Errorf("defaults = %+v, want period 50 ema", mp)
	}
}

func TestParseParamsJSONNumbers(t *testing.T) {
	// Numbers decoded from JSON arrive as float64
	raw := map[string]any{"period": float64(21), "ma_type": "sma"}
	p, err := ParseParams(PriceBelowMA, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mp := p.(MAParams)
	if mp.Period != 21 || mp.MAType != "sma" {
		t.Errorf("parsed = %+v, want period 21 sma", mp)
	}
}

func TestParseParamsValidation(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		raw  map[string]any
	}{
		{"zero period", PriceAboveMA, map[string]any{"period": 0}},
		{"bad ma type", PriceAboveMA, map[string]any{"ma_type": "hull"}},
		{"fast not below slow", EMACrossoverBullish, map[string]any{"fast_period": 50, "slow_period": 20}},
		{"rsi threshold out of range", RSIOversold, map[string]any{"threshold": 150}},
		{"rsi min above max", RSIInRange, map[string]any{"min_val": 60, "max_val": 40}},
		{"contraction ratio at one", CandleRangeContraction, map[string]any{"ratio": 1.0}},
		{"structure lookback too small", HigherHighsLows, map[string]any{"lookback": 5}},
		{"negative proximity", PriceNearSupport, map[string]any{"proximity_pct": -1.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseParams(tt.typ, tt.raw); !errors.Is(err, ErrInvalidParams) {
				t.Errorf("err = %v, want ErrInvalidParams", err)
			}
		})
	}
}

func TestParseParamsUnknownType(t *testing.T) {
	if _, err := ParseParams(Type("nope"), nil); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("err = %v, want ErrUnknownType", err)
	}
}

func TestMetadataCoversEveryKnownType(t *testing.T) {
	for _, m := range Metadata() {
		if !IsKnown(m.Type) {
			t.Errorf("metadata lists unknown type %q", m.Type)
		}
		// Defaults must round-trip through the parser
		if _, err := ParseParams(m.Type, m.DefaultParams); err != nil {
			t.Errorf("default params for %q rejected: %v", m.Type, err)
		}
	}
	if !IsKnown(VolumeSpike) || IsKnown(Type("bogus")) {
		t.Error("IsKnown misclassifies types")
	}
}

func TestResultString(t *testing.T) {
	if True.String() != "true" || False.String() != "false" || Undefined.String() != "undefined" {
		t.Error("result labels drifted")
	}
	if !True.Satisfied() || False.Satisfied() || Undefined.Satisfied() {
		t.Error("only True should satisfy a gate")
	}
}
