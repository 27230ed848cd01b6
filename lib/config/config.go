/*package config reads hoomdtf's configuration files. They are INI files with a
single [bridge] section, parsed with gcfg. RawArgs holds what the user wrote,
and Process turns it into Args, checking each value along the way.

An annotated example is given by ExampleConfig, and can be printed with
"hoomdtf example_config".
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/gcfg.v1"

	"github.com/darmis007/hoomd-tf/lib/format"
	"github.com/darmis007/hoomd-tf/lib/nlist"
	"github.com/darmis007/hoomd-tf/lib/particles"
	"github.com/darmis007/hoomd-tf/lib/snapshot"
)

// ExampleConfig is an example configuration file with every variable set to
// its default value.
const ExampleConfig = `[bridge]

######################
# Initial conditions #
######################

# IC is the source of the starting particles: lattice, gadget2, or sheet.
IC = lattice
# ICFile is the snapshot file read by the gadget2 and sheet ICs.
ICFile =
# ICOrder is the byte order of Gadget-2 files: little or big.
ICOrder = little
# LatticeWidth is the number of particles along each side of a lattice.
LatticeWidth = 8
# BoxWidth is the width of the periodic box. File ICs use the width stored
# in the file.
BoxWidth = 10
# Jitter is the width of the random displacement of lattice particles.
Jitter = 0.2
Seed = 1

##########
# Bridge #
##########

# Precision of the shared regions: float32 or float64.
Precision = float64
# NNeighs is the number of neighbor slots per particle. 0 sends positions only.
NNeighs = 0
RCut = 2.5
Skin = 0.3
# Schema is the neighbor slot format: displacement or indexed.
Schema = indexed
# StorageMode is half or full.
StorageMode = full
# StalePolicy is what happens to output the engine didn't write: accept or
# reject.
StalePolicy = accept
# MaxMappedBytes limits the total size of the shared regions. 0 means no
# limit.
MaxMappedBytes = 0
# ManifestFile is where the region layout is written on every reallocation.
# Leave empty to skip it.
ManifestFile =

##########
# Engine #
##########

# Engine is the force engine: lj or gravity.
Engine = lj
# EngineMode is inline (same goroutine) or remote (separate goroutine behind
# a task lock).
EngineMode = inline
# Timeout is how long to wait for a remote engine.
Timeout = 10s
LJEpsilon = 1
LJSigma = 1
GravityG = 1
GravityMass = 1
GravityEps = 0.05

#######
# Run #
#######

Steps = 100
Dt = 0.005
# Threads is the number of threads to use. -1 uses every core.
Threads = -1
# ResizeStep is the step before which the particle count changes to ResizeTo.
# -1 turns this off.
ResizeStep = -1
ResizeTo = 0

##########
# Output #
##########

# DumpSteps selects the steps that are dumped, e.g. 0..100/10 + 1000../500.
DumpSteps =
# DumpFile is a printf pattern with one integer verb for the step.
DumpFile = frame_%08d.dump
DumpLevel = 1
# MetricsAddress is where Prometheus metrics are served, e.g. :9100.
MetricsAddress =
# LogLevel is debug, info, warn, or error.
LogLevel = info
`

// RawArgs stores the unprocessed values which the user assigned to each config
// variable.
type RawArgs struct {
	IC, ICFile, ICOrder string
	LatticeWidth        int
	BoxWidth, Jitter    float64
	Seed                int64

	Precision           string
	NNeighs             int
	RCut, Skin          float64
	Schema, StorageMode string
	StalePolicy         string
	MaxMappedBytes      int
	ManifestFile        string

	Engine, EngineMode    string
	Timeout               string
	LJEpsilon, LJSigma    float64
	GravityG, GravityMass float64
	GravityEps            float64

	Steps      int64
	Dt         float64
	Threads    int
	ResizeStep int64
	ResizeTo   int

	DumpSteps, DumpFile string
	DumpLevel           int
	MetricsAddress      string
	LogLevel            string
}

type configFile struct {
	Bridge RawArgs
}

// Args stores configuration information. It is a processed version of
// RawArgs.
type Args struct {
	RawArgs

	Precision   particles.Precision
	Schema      nlist.Schema
	StorageMode nlist.StorageMode
	StalePolicy snapshot.StalePolicy
	Timeout     time.Duration
	DumpSteps   *format.Selection
	LogLevel    zapcore.Level
}

// DefaultRawArgs returns the values in ExampleConfig.
func DefaultRawArgs() *RawArgs {
	raw, err := ParseString(ExampleConfig)
	if err != nil {
		panic(fmt.Sprintf("Internal error: example config is invalid: %s",
			err.Error()))
	}
	return raw
}

// ParseString parses a config file's contents. Variables which aren't set
// are left as zero values.
func ParseString(s string) (*RawArgs, error) {
	cfg := &configFile{}
	if err := gcfg.ReadStringInto(cfg, s); err != nil {
		return nil, fmt.Errorf("Could not parse config: %w", err)
	}
	return &cfg.Bridge, nil
}

// ParseFile parses a config file on top of the defaults in ExampleConfig.
func ParseFile(fname string) (*RawArgs, error) {
	cfg := &configFile{Bridge: *DefaultRawArgs()}
	if err := gcfg.ReadFileInto(cfg, fname); err != nil {
		return nil, fmt.Errorf("Could not parse config file %s: %w", fname, err)
	}
	return &cfg.Bridge, nil
}

// Process checks raw and converts it to Args. Only simple validation is done
// here: nothing touches the file system.
func (raw *RawArgs) Process() (*Args, error) {
	args := &Args{RawArgs: *raw}
	var err error

	switch raw.IC {
	case "lattice":
		if raw.LatticeWidth < 0 {
			return nil, fmt.Errorf("LatticeWidth is %d, but it can't be "+
				"negative.", raw.LatticeWidth)
		}
		if raw.BoxWidth <= 0 {
			return nil, fmt.Errorf("BoxWidth is %g, but it must be positive.",
				raw.BoxWidth)
		}
	case "gadget2", "sheet":
		if raw.ICFile == "" {
			return nil, fmt.Errorf("IC is '%s', but ICFile isn't set.", raw.IC)
		}
	default:
		return nil, fmt.Errorf("IC is '%s', but the only valid ICs are "+
			"'lattice', 'gadget2', and 'sheet'.", raw.IC)
	}
	if raw.ICOrder != "little" && raw.ICOrder != "big" {
		return nil, fmt.Errorf("ICOrder is '%s', but it must be 'little' "+
			"or 'big'.", raw.ICOrder)
	}

	if args.Precision, err = particles.ParsePrecision(raw.Precision); err != nil {
		return nil, err
	}
	if args.Schema, err = nlist.ParseSchema(raw.Schema); err != nil {
		return nil, err
	}
	if args.StorageMode, err = nlist.ParseStorageMode(raw.StorageMode); err != nil {
		return nil, err
	}
	if args.StalePolicy, err = snapshot.ParseStalePolicy(raw.StalePolicy); err != nil {
		return nil, err
	}
	if raw.NNeighs < 0 {
		return nil, fmt.Errorf("NNeighs is %d, but it can't be negative.",
			raw.NNeighs)
	}
	if raw.NNeighs > 0 && raw.RCut <= 0 {
		return nil, fmt.Errorf("RCut is %g, but neighbor mode needs a "+
			"positive cutoff.", raw.RCut)
	}
	if raw.MaxMappedBytes < 0 {
		return nil, fmt.Errorf("MaxMappedBytes is %d, but it can't be "+
			"negative.", raw.MaxMappedBytes)
	}

	switch raw.Engine {
	case "lj", "gravity":
	default:
		return nil, fmt.Errorf("Engine is '%s', but the only valid engines "+
			"are 'lj' and 'gravity'.", raw.Engine)
	}
	switch raw.EngineMode {
	case "inline", "remote":
	default:
		return nil, fmt.Errorf("EngineMode is '%s', but it must be 'inline' "+
			"or 'remote'.", raw.EngineMode)
	}
	if args.Timeout, err = time.ParseDuration(raw.Timeout); err != nil {
		return nil, fmt.Errorf("Timeout '%s' is not a duration.", raw.Timeout)
	} else if args.Timeout <= 0 {
		return nil, fmt.Errorf("Timeout is %s, but it must be positive.",
			args.Timeout)
	}

	if raw.Steps < 0 || raw.Dt <= 0 {
		return nil, fmt.Errorf("Steps = %d and Dt = %g, but Steps can't be "+
			"negative and Dt must be positive.", raw.Steps, raw.Dt)
	}
	if raw.Threads == 0 || raw.Threads < -1 {
		return nil, fmt.Errorf("Threads is %d, but it must be positive or "+
			"-1.", raw.Threads)
	}
	if raw.ResizeStep >= 0 && raw.ResizeTo < 0 {
		return nil, fmt.Errorf("ResizeTo is %d, but it can't be negative.",
			raw.ResizeTo)
	}

	if args.DumpSteps, err = format.ParseSelection(raw.DumpSteps); err != nil {
		return nil, fmt.Errorf("DumpSteps '%s' is not valid. %w",
			raw.DumpSteps, err)
	}
	if !args.DumpSteps.Empty() && strings.Count(raw.DumpFile, "%") != 1 {
		return nil, fmt.Errorf("DumpFile '%s' needs exactly one integer "+
			"verb, like %%08d.", raw.DumpFile)
	}

	if err = args.LogLevel.UnmarshalText([]byte(raw.LogLevel)); err != nil {
		return nil, fmt.Errorf("LogLevel '%s' is not valid.", raw.LogLevel)
	}

	return args, nil
}
