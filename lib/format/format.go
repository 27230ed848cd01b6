/*package format parses the step-selection language used to decide which
timesteps get dumped, e.g:

   DumpSteps = 0..1000/100 - 300 + 1500
   DumpSteps = 1000../250

A selection is a series of terms separated by "+" or "-". Each term is one of:

  100        - the single step 100.
  0..100     - every step from 0 to 100, inclusive.
  0..100/10  - every tenth step from 0 to 100: 0, 10, ..., 100.
  100..      - every step from 100 onwards.
  100../10   - every tenth step from 100 onwards: 100, 110, 120, ...

Terms are added or removed from left to right, and a leading "+" may be
dropped. Open-ended terms can only be added, since there is no finite
set of steps to take them away from. Removing a step that was never added is
an error, as is adding the same step twice; both usually mean the selection
doesn't say what the user thinks it says.

All spaces around "-" and "+" are ignored.
*/
package format

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	// Any expanded selection which would have more than BigNumber elements
	// is assumed to be a bug.
	BigNumber = 1 << 20
)

// Selection is a parsed step selection.
type Selection struct {
	steps []int64 // sorted
	open  []openRange
}

// openRange is every stride'th step from start onwards.
type openRange struct {
	start, stride int64
}

// Contains returns true if step is selected. The zero Selection contains
// nothing.
func (s *Selection) Contains(step int64) bool {
	if s == nil || step < 0 {
		return false
	}
	for _, o := range s.open {
		if step >= o.start && (step-o.start)%o.stride == 0 {
			return true
		}
	}
	i := sort.Search(len(s.steps), func(i int) bool { return s.steps[i] >= step })
	return i < len(s.steps) && s.steps[i] == step
}

// Empty returns true if the selection can never contain a step.
func (s *Selection) Empty() bool {
	return s == nil || (len(s.steps) == 0 && len(s.open) == 0)
}

// Steps returns the finite part of the selection in sorted order.
func (s *Selection) Steps() []int64 {
	if s == nil {
		return nil
	}
	return append([]int64{}, s.steps...)
}

// ParseSelection parses a step-selection string. An empty or all-space
// string gives an empty selection.
func ParseSelection(format string) (*Selection, error) {
	if strings.TrimSpace(format) == "" {
		return &Selection{}, nil
	}

	tok, err := tokenise(format)
	if err != nil {
		return nil, err
	}
	adds, subs, err := addsSubs(tok)
	if err != nil {
		return nil, err
	}

	sel := &Selection{}
	m := map[int64]bool{}
	for i := range adds {
		if o, ok := parseOpen(adds[i]); ok {
			sel.open = append(sel.open, o)
			continue
		}
		for _, n := range parseToken(adds[i]) {
			if m[n] {
				return nil, fmt.Errorf("The step %d is added more than once.", n)
			}
			m[n] = true
		}
		if len(m) > BigNumber {
			return nil, fmt.Errorf("The selection '%s' has more than %d "+
				"steps, which is almost certainly a bug.", format, BigNumber)
		}
	}

	for i := range subs {
		if _, ok := parseOpen(subs[i]); ok {
			return nil, fmt.Errorf("The open-ended term '%s' cannot be "+
				"removed from a selection.", subs[i])
		}
		for _, n := range parseToken(subs[i]) {
			if !m[n] {
				return nil, fmt.Errorf("The step %d is removed more times "+
					"than it was added.", n)
			}
			delete(m, n)
		}
	}

	for n := range m {
		sel.steps = append(sel.steps, n)
	}
	sort.Slice(sel.steps, func(i, j int) bool { return sel.steps[i] < sel.steps[j] })

	return sel, nil
}

// tokenise splits a selection string into terms and operators.
func tokenise(format string) ([]string, error) {
	clean := strings.ReplaceAll(format, "+", " + ")
	clean = strings.ReplaceAll(clean, "-", " - ")

	tok := strings.Fields(clean)
	if len(tok) == 0 {
		return nil, fmt.Errorf("The selection string is empty.")
	}
	return tok, nil
}

func addsSubs(tok []string) (adds, subs []string, err error) {
	// Handle the case where the starting "+" is dropped.
	start := 0
	if tok[0] != "+" && tok[0] != "-" {
		if err := isToken(tok[0]); err != nil {
			return nil, nil, fmt.Errorf(
				"Element number %d, '%s', cannot be parsed because %s",
				1, tok[0], err.Error())
		}
		adds = append(adds, tok[0])
		start = 1
	}

	for i := start; i < len(tok); i += 2 {
		if tok[i] != "-" && tok[i] != "+" {
			return nil, nil, fmt.Errorf(
				"Element number %d, '%s', should be a '-' or '+', but isn't.",
				i+1, tok[i])
		}
		if i+1 >= len(tok) {
			return nil, nil, fmt.Errorf(
				"The selection string ends in a trailing '%s'.", tok[i])
		}
		if err := isToken(tok[i+1]); err != nil {
			return nil, nil, fmt.Errorf(
				"Element number %d, '%s', cannot be parsed because %s",
				i+2, tok[i+1], err.Error())
		}

		if tok[i] == "+" {
			adds = append(adds, tok[i+1])
		} else {
			subs = append(subs, tok[i+1])
		}
	}

	return adds, subs, nil
}

// isToken returns a nil error if tok is a valid term and an error describing
// the problem otherwise. The message is written to follow "because".
func isToken(tok string) error {
	if len(tok) == 0 {
		return fmt.Errorf("the term is empty.")
	}

	body, stride, err := splitStride(tok)
	if err != nil {
		return err
	}

	bounds := strings.Split(body, "..")
	switch len(bounds) {
	case 1:
		if stride != 0 {
			return fmt.Errorf("a stride only makes sense on a range.")
		}
		if _, err := parseStep(bounds[0]); err != nil {
			return err
		}
		return nil
	case 2:
		start, err := parseStep(bounds[0])
		if err != nil {
			return err
		}
		if bounds[1] == "" {
			return nil
		}
		end, err := parseStep(bounds[1])
		if err != nil {
			return err
		}
		if end < start {
			return fmt.Errorf("lower bound %d is larger than upper bound %d.",
				start, end)
		}
		if (end-start)/max(stride, 1) > BigNumber {
			return fmt.Errorf("the range %d..%d is too long.", start, end)
		}
		return nil
	}
	return fmt.Errorf("it has more than one '..'.")
}

// splitStride splits "body/stride". stride is zero if there is no '/'.
func splitStride(tok string) (body string, stride int64, err error) {
	parts := strings.Split(tok, "/")
	switch len(parts) {
	case 1:
		return tok, 0, nil
	case 2:
		stride, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil || stride <= 0 {
			return "", 0, fmt.Errorf("'%s' is not a positive stride.", parts[1])
		}
		return parts[0], stride, nil
	}
	return "", 0, fmt.Errorf("it has more than one '/'.")
}

func parseStep(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("'%s' is not an integer.", s)
	}
	return n, nil
}

// parseOpen parses an open-ended "a.." or "a../n" term. isToken must
// already have accepted tok.
func parseOpen(tok string) (openRange, bool) {
	body, stride, _ := splitStride(tok)
	if !strings.HasSuffix(body, "..") {
		return openRange{}, false
	}
	start, _ := parseStep(strings.TrimSuffix(body, ".."))
	return openRange{start, max(stride, 1)}, true
}

// parseToken expands a single finite term. isToken must already have
// accepted tok.
func parseToken(tok string) []int64 {
	body, stride, _ := splitStride(tok)
	stride = max(stride, 1)

	bounds := strings.Split(body, "..")
	start, _ := parseStep(bounds[0])
	if len(bounds) == 1 {
		return []int64{start}
	}
	end, _ := parseStep(bounds[1])

	out := []int64{}
	for n := start; n <= end; n += stride {
		out = append(out, n)
	}
	return out
}
