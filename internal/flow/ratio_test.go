package flow

import (
	"math"
	"testing"

	"token-flow-lab/internal/domain"
)

func TestCompute_ZeroFlowsIsNeutral(t *testing.T) {
	for _, scale := range []float64{1, 6, 24} {
		r := Compute(0, 0, scale)
		if r.InflowShare != 0.5 {
			t.Errorf("scale %v: expected inflowShare 0.5, got %f", scale, r.InflowShare)
		}
		if r.Intensity != 0 {
			t.Errorf("scale %v: expected intensity 0, got %f", scale, r.Intensity)
		}
	}
}

func TestCompute_InflowDominant(t *testing.T) {
	// 800k in / 200k out → share 0.8, ratio 4
	r := Compute(800_000, 200_000, 1)

	if math.Abs(r.InflowShare-0.8) > 1e-9 {
		t.Errorf("expected inflowShare 0.8, got %f", r.InflowShare)
	}
	if r.Dominant != domain.DirectionInflow {
		t.Errorf("expected inflow dominant, got %s", r.Dominant)
	}
	if math.Abs(r.Magnitude-4) > 1e-9 {
		t.Errorf("expected magnitude 4, got %f", r.Magnitude)
	}
	// amplify(3) = sqrt(3/4)
	if math.Abs(r.Intensity-math.Sqrt(0.75)) > 1e-9 {
		t.Errorf("expected intensity %f, got %f", math.Sqrt(0.75), r.Intensity)
	}
}

func TestCompute_OutflowDominantSaturates(t *testing.T) {
	r := Compute(1_000, 9_000, 1)

	if math.Abs(r.InflowShare-0.1) > 1e-9 {
		t.Errorf("expected inflowShare 0.1, got %f", r.InflowShare)
	}
	if r.Dominant != domain.DirectionOutflow {
		t.Errorf("expected outflow dominant, got %s", r.Dominant)
	}
	if r.Intensity != 1 {
		t.Errorf("expected saturated intensity 1, got %f", r.Intensity)
	}
}

func TestCompute_OneSidedUsesSaturationRatio(t *testing.T) {
	r := Compute(500, 0, 1)
	if r.Magnitude != 5 {
		t.Errorf("expected magnitude 5, got %f", r.Magnitude)
	}
	if r.Intensity != 1 {
		t.Errorf("expected intensity 1, got %f", r.Intensity)
	}
}

func TestCompute_EqualFlowsIsOutflowWithZeroIntensity(t *testing.T) {
	r := Compute(100, 100, 24)
	if r.Dominant != domain.DirectionOutflow {
		t.Errorf("share 0.5 must not be inflow-dominant, got %s", r.Dominant)
	}
	if r.Intensity != 0 {
		t.Errorf("expected intensity 0, got %f", r.Intensity)
	}
}

func TestCompute_TimeScaleBoostsAndClamps(t *testing.T) {
	base := Compute(110, 100, 1)
	boosted := Compute(110, 100, 24)

	if boosted.Intensity <= base.Intensity {
		t.Errorf("expected boost, got %f <= %f", boosted.Intensity, base.Intensity)
	}
	if boosted.Intensity > 1 {
		t.Errorf("intensity above 1: %f", boosted.Intensity)
	}
}

func TestCompute_MonotonicInImbalance(t *testing.T) {
	prev := -1.0
	for in := 100.0; in <= 1000; in += 50 {
		r := Compute(in, 100, 1)
		if r.Intensity < prev {
			t.Fatalf("intensity decreased at inflow %v: %f < %f", in, r.Intensity, prev)
		}
		prev = r.Intensity
	}
}

func TestCompute_InvalidInputsNeverPanic(t *testing.T) {
	cases := [][3]float64{
		{math.NaN(), 10, 1},
		{-5, 10, 1},
		{math.Inf(1), 10, 1},
		{10, 10, math.NaN()},
		{10, 5, -3},
	}
	for _, c := range cases {
		r := Compute(c[0], c[1], c[2])
		if math.IsNaN(r.Intensity) || r.Intensity < 0 || r.Intensity > 1 {
			t.Errorf("inputs %v: invalid intensity %f", c, r.Intensity)
		}
		if math.IsNaN(r.InflowShare) {
			t.Errorf("inputs %v: NaN inflowShare", c)
		}
	}
}

func TestParams_InvalidConstantsFallBack(t *testing.T) {
	p := Params{SaturationRatio: 0.5, Exponent: 7}
	r := p.Compute(300, 100, 1)
	want := DefaultParams().Compute(300, 100, 1)
	if math.Abs(r.Intensity-want.Intensity) > 1e-12 {
		t.Errorf("expected fallback intensity %f, got %f", want.Intensity, r.Intensity)
	}
}
