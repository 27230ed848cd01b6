package lib

import (
	"fmt"
)

// Mode is the mode hoomdtf is being run in.
type Mode int

const (
	HelpMode Mode = iota
	RunMode
	CheckMode
	ExampleConfigMode
)

var modeNames = []string{"help", "run", "check", "example_config"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode converts a command-line mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	for i := range modeNames {
		if modeNames[i] == s {
			return Mode(i), nil
		}
	}
	return HelpMode, fmt.Errorf("You attempted to run hoomdtf in the mode "+
		"'%s', but the only valid modes are %q.", s, modeNames)
}
