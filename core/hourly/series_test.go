package hourly

import (
	"math"
	"testing"
)

func TestFromSliceRejectsWrongLength(t *testing.T) {
	if _, err := FromSlice(make([]float64, 24)); err == nil {
		t.Fatal("expected error for short slice")
	}
	s, err := FromSlice(make([]float64, Hours))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != Hours {
		t.Fatalf("expected %d hours got %d", Hours, len(s))
	}
}

func TestSeriesArithmetic(t *testing.T) {
	a := Fill(2)
	b := Fill(3)

	if got := a.Add(b)[0]; got != 5 {
		t.Errorf("add: expected 5 got %v", got)
	}
	if got := a.Sub(b)[0]; got != -1 {
		t.Errorf("sub: expected -1 got %v", got)
	}
	if got := a.Scale(4)[0]; got != 8 {
		t.Errorf("scale: expected 8 got %v", got)
	}
	// operands stay untouched
	if a[0] != 2 || b[0] != 3 {
		t.Errorf("operands mutated: %v %v", a[0], b[0])
	}
}

func TestSeriesClone(t *testing.T) {
	a := Fill(1)
	b := a.Clone()
	b[0] = 9
	if a[0] != 1 {
		t.Error("clone shares backing array")
	}
}

func TestSeriesRound(t *testing.T) {
	s := Zeros()
	s[0] = 1.005
	s[1] = -2.344
	out := s.Round(2)
	if out[0] != 1.0 && out[0] != 1.01 {
		t.Errorf("round: got %v", out[0])
	}
	if out[1] != -2.34 {
		t.Errorf("round: expected -2.34 got %v", out[1])
	}
}

func TestSeriesDropSignedZero(t *testing.T) {
	s := Zeros()
	s[0] = math.Copysign(0, -1)
	out := s.DropSignedZero()
	if math.Signbit(out[0]) {
		t.Error("expected negative zero replaced by positive zero")
	}
}

func TestSeriesMaxAbs(t *testing.T) {
	s := Zeros()
	s[10] = -4
	s[20] = 3
	if got := s.MaxAbs(); got != 4 {
		t.Errorf("expected 4 got %v", got)
	}
}

func TestRound(t *testing.T) {
	checks := []struct {
		v        float64
		decimals int
		want     float64
	}{
		{1.2345, 2, 1.23},
		{1.235, 2, 1.24},
		{-0.0004, 3, 0},
		{2.5, 0, 3},
	}
	for _, c := range checks {
		if got := Round(c.v, c.decimals); got != c.want {
			t.Errorf("Round(%v, %d): expected %v got %v", c.v, c.decimals, c.want, got)
		}
	}
}
