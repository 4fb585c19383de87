package hourly

import (
	"fmt"
	"math"
)

// Frame holds hourly series for an ordered set of string keys. Column order is
// preserved across transformations so that derived frames stay aligned with
// the interconnector table they were built from.
type Frame struct {
	keys []string
	cols map[string]Series
}

// NewFrame returns an empty frame.
func NewFrame() *Frame {
	return &Frame{cols: make(map[string]Series)}
}

// ZeroFrame returns a frame with a zero series per key.
func ZeroFrame(keys []string) *Frame {
	f := NewFrame()
	for _, key := range keys {
		f.Set(key, Zeros())
	}
	return f
}

// Keys returns the column keys in insertion order.
func (f *Frame) Keys() []string {
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

// Len returns the number of columns.
func (f *Frame) Len() int {
	return len(f.keys)
}

// Has reports whether the frame contains the key.
func (f *Frame) Has(key string) bool {
	_, ok := f.cols[key]
	return ok
}

// Column returns the series stored under key, or a zero series when absent.
func (f *Frame) Column(key string) Series {
	if col, ok := f.cols[key]; ok {
		return col
	}
	return Zeros()
}

// Set stores the series under key, appending the key when new.
func (f *Frame) Set(key string, s Series) {
	if _, ok := f.cols[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.cols[key] = s
}

// Drop removes the column under key.
func (f *Frame) Drop(key string) {
	if _, ok := f.cols[key]; !ok {
		return
	}
	delete(f.cols, key)
	for i, k := range f.keys {
		if k == key {
			f.keys = append(f.keys[:i], f.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	out := NewFrame()
	for _, key := range f.keys {
		out.Set(key, f.cols[key].Clone())
	}
	return out
}

// Apply returns a frame with fn applied to every column.
func (f *Frame) Apply(fn func(Series) Series) *Frame {
	out := NewFrame()
	for _, key := range f.keys {
		out.Set(key, fn(f.cols[key]))
	}
	return out
}

// Update overwrites matching cells of f with non-NaN cells of other. Columns
// of other that are absent from f are ignored.
func (f *Frame) Update(other *Frame) {
	for _, key := range other.keys {
		dst, ok := f.cols[key]
		if !ok {
			continue
		}
		for h, v := range other.cols[key] {
			if !math.IsNaN(v) {
				dst[h] = v
			}
		}
	}
}

// ArgMaxAbs returns, per hour, the key holding the largest absolute value.
// Ties resolve to the earliest column. An empty frame yields empty keys.
func (f *Frame) ArgMaxAbs() []string {
	out := make([]string, Hours)
	if len(f.keys) == 0 {
		return out
	}
	for h := 0; h < Hours; h++ {
		best := math.Inf(-1)
		for _, key := range f.keys {
			if a := math.Abs(f.cols[key][h]); a > best {
				best = a
				out[h] = key
			}
		}
	}
	return out
}

// Lookup returns, per hour, the value of the column named by coords. Hours
// with an empty coordinate yield NaN.
func (f *Frame) Lookup(coords []string) Series {
	out := make(Series, Hours)
	for h := 0; h < Hours; h++ {
		if coords[h] == "" || !f.Has(coords[h]) {
			out[h] = math.NaN()
			continue
		}
		out[h] = f.cols[coords[h]][h]
	}
	return out
}

// String implements fmt.Stringer for debugging purposes.
func (f *Frame) String() string {
	return fmt.Sprintf("Frame(%d columns x %d hours)", len(f.keys), Hours)
}
