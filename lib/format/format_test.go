package format

import (
	"testing"

	"github.com/darmis007/hoomd-tf/lib/eq"
)

func TestIsToken(t *testing.T) {
	tests := []struct {
		tok   string
		valid bool
	}{
		{"", false},
		{"1", true},
		{"a", false},
		{"1..30", true},
		{"1..30/5", true},
		{"1../5", true},
		{"1..", true},
		{"a..30", false},
		{"1..a", false},
		{"30..1", false},
		{"1..30..60", false},
		{"1/5", false},
		{"1..30/0", false},
		{"1..30/a", false},
		{"1..30/5/5", false},
	}

	for i := range tests {
		err := isToken(tests[i].tok)
		if tests[i].valid && err != nil {
			t.Errorf("%d) Expected token '%s' to be valid, but got error '%s'.",
				i, tests[i].tok, err.Error())
		} else if !tests[i].valid && err == nil {
			t.Errorf("%d) Expected token '%s' to be invalid, but got no error.",
				i, tests[i].tok)
		}
	}
}

func TestAddsSubs(t *testing.T) {
	tests := []struct {
		tok, adds, subs []string
		valid           bool
	}{
		{[]string{"1"}, []string{"1"}, nil, true},
		{[]string{"+", "1"}, []string{"1"}, nil, true},
		{[]string{"-", "1"}, nil, []string{"1"}, true},
		{[]string{"1", "+", "2..10"}, []string{"1", "2..10"}, nil, true},
		{[]string{"1", "-", "2"}, []string{"1"}, []string{"2"}, true},
		{[]string{"1", "2"}, nil, nil, false},
		{[]string{"1", "+"}, nil, nil, false},
		{[]string{"1", "+", "-", "2"}, nil, nil, false},
		{[]string{"1", "*", "2"}, nil, nil, false},
		{[]string{"1", "+", "a..2"}, nil, nil, false},
	}

	for i := range tests {
		adds, subs, err := addsSubs(tests[i].tok)
		if tests[i].valid && err != nil {
			t.Errorf("%d) Expected %s could be processed, got error '%s'",
				i, tests[i].tok, err.Error())
		} else if !tests[i].valid && err == nil {
			t.Errorf("%d) Expected %s could not be processed, but got no error.",
				i, tests[i].tok)
		} else if tests[i].valid && (!eq.Slices(adds, tests[i].adds) ||
			!eq.Slices(subs, tests[i].subs)) {
			t.Errorf("%d) Expected %s would be processed into adds = %s, "+
				"subs = %s, but got adds = %s, subs = %s", i, tests[i].tok,
				tests[i].adds, tests[i].subs, adds, subs)
		}
	}
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		format string
		steps  []int64
		valid  bool
	}{
		{"", []int64{}, true},
		{"   ", []int64{}, true},
		{"a", nil, false},
		{"1", []int64{1}, true},
		{"1..5", []int64{1, 2, 3, 4, 5}, true},
		{"+ 1..5", []int64{1, 2, 3, 4, 5}, true},
		{"0..20/5", []int64{0, 5, 10, 15, 20}, true},
		{"0..22/5", []int64{0, 5, 10, 15, 20}, true},
		{"0..20/5 - 10", []int64{0, 5, 15, 20}, true},
		{"-1", nil, false},
		{"1 + 1", nil, false},
		{"1..10 - 2..9", []int64{1, 10}, true},
		{"-3 + 3..5 - 4", []int64{5}, true},
		{"3..5 - 4 - 4", nil, false},
		{"3..5 + 6+", nil, false},
		{"100../10 + 3", []int64{3}, true},
		{"3 - 100../10", nil, false},
	}

	for i := range tests {
		sel, err := ParseSelection(tests[i].format)
		if tests[i].valid && err != nil {
			t.Errorf("%d) Expected '%s' could be parsed, got error '%s'",
				i, tests[i].format, err.Error())
		} else if !tests[i].valid && err == nil {
			t.Errorf("%d) Expected '%s' should fail, but got no error.",
				i, tests[i].format)
		} else if tests[i].valid && !eq.Int64s(sel.Steps(), tests[i].steps) {
			t.Errorf("%d) Expected '%s' to expand to %d, got %d",
				i, tests[i].format, tests[i].steps, sel.Steps())
		}
	}
}

func TestContains(t *testing.T) {
	sel, err := ParseSelection("0..50/25 + 1000../100 + 7")
	if err != nil {
		t.Fatalf("ParseSelection returned '%s'.", err.Error())
	}

	tests := []struct {
		step int64
		in   bool
	}{
		{-1, false},
		{0, true},
		{7, true},
		{8, false},
		{25, true},
		{50, true},
		{75, false},
		{900, false},
		{1000, true},
		{1050, false},
		{123400, true},
	}

	for i := range tests {
		if sel.Contains(tests[i].step) != tests[i].in {
			t.Errorf("%d) Expected Contains(%d) = %v.",
				i, tests[i].step, tests[i].in)
		}
	}

	var empty *Selection
	if empty.Contains(0) || !empty.Empty() || sel.Empty() {
		t.Errorf("Empty selections are not handled correctly.")
	}
}
