package lib

/* check.go contains the core functions of hoomdtf's "check" mode. */

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/darmis007/hoomd-tf/lib/config"
)

// Check looks for problems with args which can only be found by looking at
// the system: missing files, unwritable directories, and so on. It returns
// every problem it finds.
func Check(args *config.Args) []error {
	errs := []error{}

	if args.IC != "lattice" {
		if info, err := os.Stat(args.ICFile); err != nil {
			errs = append(errs, fmt.Errorf("ICFile %s cannot be opened: %w",
				args.ICFile, err))
		} else if info.IsDir() {
			errs = append(errs, fmt.Errorf("ICFile %s is a directory.",
				args.ICFile))
		}
	}

	if !args.DumpSteps.Empty() {
		if err := checkDir(args.DumpFile); err != nil {
			errs = append(errs, fmt.Errorf("DumpFile: %w", err))
		}
	}
	if args.ManifestFile != "" {
		if err := checkDir(args.ManifestFile); err != nil {
			errs = append(errs, fmt.Errorf("ManifestFile: %w", err))
		}
	}

	if args.Threads > runtime.NumCPU() {
		errs = append(errs, fmt.Errorf("%d threads requested, but the "+
			"system only has %d cores.", args.Threads, runtime.NumCPU()))
	}

	return errs
}

// checkDir returns an error if the directory containing fname doesn't exist.
func checkDir(fname string) error {
	dir := filepath.Dir(fname)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("the directory %s cannot be opened: %w", dir, err)
	} else if !info.IsDir() {
		return fmt.Errorf("%s is not a directory.", dir)
	}
	return nil
}
