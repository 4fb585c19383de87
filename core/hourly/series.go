// Package hourly provides fixed-length numeric series and frames covering the
// 8760 hours of a scenario year. They back the market clearing arithmetic.
package hourly

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Hours is the number of hourly values in a scenario year.
const Hours = 8760

// Series holds one value per hour of the year.
type Series []float64

// Zeros returns a zero-valued series.
func Zeros() Series {
	return make(Series, Hours)
}

// Fill returns a series with every hour set to v.
func Fill(v float64) Series {
	s := make(Series, Hours)
	for i := range s {
		s[i] = v
	}
	return s
}

// FromSlice validates the slice length and converts it to a Series.
func FromSlice(values []float64) (Series, error) {
	if len(values) != Hours {
		return nil, fmt.Errorf("expected %d hourly values, got %d", Hours, len(values))
	}
	return Series(values), nil
}

// Clone returns a copy of the series.
func (s Series) Clone() Series {
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// Add returns the element-wise sum of s and other.
func (s Series) Add(other Series) Series {
	out := s.Clone()
	floats.Add(out, other)
	return out
}

// Sub returns the element-wise difference of s and other.
func (s Series) Sub(other Series) Series {
	out := s.Clone()
	floats.Sub(out, other)
	return out
}

// Scale returns the series multiplied by the scalar c.
func (s Series) Scale(c float64) Series {
	out := s.Clone()
	floats.Scale(c, out)
	return out
}

// Round returns the series rounded to the given number of decimals.
func (s Series) Round(decimals int) Series {
	out := make(Series, len(s))
	for i, v := range s {
		out[i] = Round(v, decimals)
	}
	return out
}

// DropSignedZero replaces negative zero values with positive zero.
func (s Series) DropSignedZero() Series {
	out := s.Clone()
	for i, v := range out {
		if v == 0 {
			out[i] = 0
		}
	}
	return out
}

// MaxAbs returns the largest absolute value in the series.
func (s Series) MaxAbs() float64 {
	max := 0.0
	for _, v := range s {
		if a := math.Abs(v); a > max {
			max = a
		}
	}
	return max
}

// Round rounds v to the given number of decimals.
func Round(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}
