package lib

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/darmis007/hoomd-tf/lib/config"
)

// Overrides are config variables set on the command line. Only the flags the
// user actually passed are applied.
type Overrides struct {
	fs *pflag.FlagSet

	logLevel, engineMode, dumpSteps string
	steps                           int64
}

// ParseCommandLine parses the command line arguments and returns the mode
// hoomdtf is being run in, the name of the config file, and any variables
// which were overridden. Expects the arguments to be presented in the order:
// $ hoomdtf <mode> [config file] [--<flag> <value>] ...
func ParseCommandLine(argv []string, stderr io.Writer) (
	mode Mode, configFile string, ov *Overrides, err error,
) {
	if len(argv) == 0 {
		return HelpMode, "", nil, nil
	}
	if mode, err = ParseMode(argv[0]); err != nil {
		return HelpMode, "", nil, err
	}

	ov = &Overrides{fs: pflag.NewFlagSet(mode.String(), pflag.ContinueOnError)}
	ov.fs.SetOutput(stderr)
	ov.fs.StringVar(&ov.logLevel, "log-level", "", "overrides LogLevel")
	ov.fs.StringVar(&ov.engineMode, "engine-mode", "", "overrides EngineMode")
	ov.fs.StringVar(&ov.dumpSteps, "dump-steps", "", "overrides DumpSteps")
	ov.fs.Int64Var(&ov.steps, "steps", 0, "overrides Steps")

	if err = ov.fs.Parse(argv[1:]); err != nil {
		return HelpMode, "", nil, err
	}

	switch rest := ov.fs.Args(); len(rest) {
	case 0:
	case 1:
		configFile = rest[0]
	default:
		return HelpMode, "", nil, fmt.Errorf("Expected at most one config "+
			"file, but got %q.", rest)
	}
	if (mode == RunMode || mode == CheckMode) && configFile == "" {
		return HelpMode, "", nil, fmt.Errorf("The '%s' mode needs a config "+
			"file.", mode)
	}

	return mode, configFile, ov, nil
}

// Overwrite replaces the variables in raw which were set on the command
// line.
func (ov *Overrides) Overwrite(raw *config.RawArgs) {
	if ov == nil {
		return
	}
	if ov.fs.Changed("log-level") {
		raw.LogLevel = ov.logLevel
	}
	if ov.fs.Changed("engine-mode") {
		raw.EngineMode = ov.engineMode
	}
	if ov.fs.Changed("dump-steps") {
		raw.DumpSteps = ov.dumpSteps
	}
	if ov.fs.Changed("steps") {
		raw.Steps = ov.steps
	}
}

// PrintHelp writes the command-line usage to w.
func PrintHelp(w io.Writer) {
	fmt.Fprintf(w, `hoomdtf runs a simulation whose forces are computed by an
engine that reads and writes shared-memory regions.

Usage:
    hoomdtf run <config file> [flags]
    hoomdtf check <config file> [flags]
    hoomdtf example_config
    hoomdtf help

Flags:
    --log-level <level>     overrides LogLevel
    --engine-mode <mode>    overrides EngineMode
    --dump-steps <steps>    overrides DumpSteps
    --steps <n>             overrides Steps
`)
}
