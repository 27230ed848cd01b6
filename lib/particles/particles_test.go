package particles

import (
	"math"
	"testing"
)

func TestTagAsScalar(t *testing.T) {
	tags := []uint32{0, 1, 2, 17, 1 << 20, math.MaxUint32}

	for i, tag := range tags {
		if got := ScalarAsTag(TagAsScalar(tag)); got != tag {
			t.Errorf("%d) Expected float64 round trip of %d, got %d.",
				i, tag, got)
		}
		if got := ScalarAsTag32(TagAsScalar32(tag)); got != tag {
			t.Errorf("%d) Expected float32 round trip of %d, got %d.",
				i, tag, got)
		}
	}

	// Reinterpreted, not converted.
	if w := TagAsScalar(3); w == 3.0 {
		t.Errorf("Expected tag 3 to be stored as a bit pattern, not 3.0.")
	}
}

func TestPosition(t *testing.T) {
	r := Position([3]float64{1, 2, 3}, 7)
	if r.Vec() != [3]float64{1, 2, 3} {
		t.Errorf("Expected Vec() = [1 2 3], got %v.", r.Vec())
	} else if r.Type() != 7 {
		t.Errorf("Expected Type() = 7, got %d.", r.Type())
	}
}

func TestParsePrecision(t *testing.T) {
	tests := []struct {
		s     string
		p     Precision
		valid bool
	}{
		{"float64", Float64, true},
		{"double", Float64, true},
		{"", Float64, true},
		{"float32", Float32, true},
		{"single", Float32, true},
		{"float16", Float64, false},
	}

	for i := range tests {
		p, err := ParsePrecision(tests[i].s)
		if tests[i].valid && err != nil {
			t.Errorf("%d) Expected '%s' to parse, got error '%s'.",
				i, tests[i].s, err.Error())
		} else if !tests[i].valid && err == nil {
			t.Errorf("%d) Expected '%s' to fail, but got no error.",
				i, tests[i].s)
		} else if tests[i].valid && p != tests[i].p {
			t.Errorf("%d) Expected '%s' -> %s, got %s.",
				i, tests[i].s, tests[i].p, p)
		}
	}

	if Float64.RecordSize() != 32 || Float32.RecordSize() != 16 {
		t.Errorf("Expected record sizes 32 and 16, got %d and %d.",
			Float64.RecordSize(), Float32.RecordSize())
	}
}

func TestSystemResize(t *testing.T) {
	s := NewSystem(3)
	s.SetPositions([][3]float64{{1, 1, 1}, {2, 2, 2}, {3, 3, 3}})
	s.SetType(2, 5)

	var seen []int
	cancel := s.Subscribe(ObserverFunc(func(n int) { seen = append(seen, n) }))

	s.Resize(5)
	s.Resize(5)
	s.Resize(2)

	if len(seen) != 2 || seen[0] != 5 || seen[1] != 2 {
		t.Fatalf("Expected notifications [5 2], got %v.", seen)
	}
	if s.N() != 2 {
		t.Errorf("Expected N() = 2, got %d.", s.N())
	}
	if p := s.Positions()[1].Vec(); p != [3]float64{2, 2, 2} {
		t.Errorf("Expected particle 1 to survive the resize, got %v.", p)
	}

	s.Resize(3)
	if typ := s.Positions()[2].Type(); typ != 0 {
		t.Errorf("Expected regrown particle to have type 0, got %d.", typ)
	}
	if m := s.Masses()[2]; m != 1 {
		t.Errorf("Expected regrown particle to have unit mass, got %g.", m)
	}

	cancel()
	s.Resize(10)
	if len(seen) != 3 {
		t.Errorf("Expected 3 notifications before cancel, got %d.", len(seen))
	}
}
