package exchange

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Location selects the strategy used to place the exchange folder.
type Location string

const (
	// LocationCustom uses a fixed, user supplied path.
	LocationCustom Location = "custom"
	// LocationCascadeur places the folder beside the Cascadeur executable.
	LocationCascadeur Location = "cascadeur"
	// LocationAddon places the folder beside the add-on installation.
	LocationAddon Location = "addon"
	// LocationTemp places the folder in the OS temp directory.
	LocationTemp Location = "temp"
)

const (
	// TempFolderName is the fixed subfolder used under the OS temp dir.
	TempFolderName = "blender_to_cascadeur_exchange"
	// InstallSubfolder is appended to the executable or add-on directory.
	InstallSubfolder = "exchange"
)

// ErrStrategyUnavailable marks a resolution that fell back to the temp
// folder because the chosen strategy lacked information.
var ErrStrategyUnavailable = errors.New("exchange strategy unavailable")

// ResolveOptions carries everything the strategies may need.
type ResolveOptions struct {
	Location       Location
	CustomPath     string
	HostExecutable string // path to the Cascadeur executable (or .app bundle)
	AddonDir       string
	TempDir        string // defaults to os.TempDir()
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Path     string
	Location Location // the strategy actually used
	// Fallback is non-nil when the requested strategy could not be used
	// and the temp folder was chosen instead. It wraps
	// ErrStrategyUnavailable and is meant to be shown, not returned.
	Fallback error
}

// Resolve computes the exchange folder and creates it with both trigger
// subfolders. A strategy that cannot be satisfied falls back to the temp
// folder; the returned error is only non-nil when even the temp folder
// cannot be created.
func Resolve(fs afero.Fs, opts ResolveOptions) (Resolution, error) {
	path, err := strategyPath(opts)
	if err == nil {
		if err = (Layout{Root: path}).Ensure(fs); err == nil {
			return Resolution{Path: path, Location: opts.Location}, nil
		}
		err = fmt.Errorf("%w: %v", ErrStrategyUnavailable, err)
	}

	temp := TempPath(opts.TempDir)
	if ensureErr := (Layout{Root: temp}).Ensure(fs); ensureErr != nil {
		return Resolution{}, fmt.Errorf("resolve exchange folder: %w", ensureErr)
	}
	if opts.Location == LocationTemp || opts.Location == "" {
		err = nil
	}
	return Resolution{Path: temp, Location: LocationTemp, Fallback: err}, nil
}

// TempPath returns the temp strategy path. An empty tempDir means
// os.TempDir().
func TempPath(tempDir string) string {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return filepath.Join(tempDir, TempFolderName)
}

func strategyPath(opts ResolveOptions) (string, error) {
	switch opts.Location {
	case LocationTemp, "":
		return TempPath(opts.TempDir), nil
	case LocationCustom:
		if opts.CustomPath == "" {
			return "", fmt.Errorf("%w: custom location selected but no folder is set", ErrStrategyUnavailable)
		}
		return absPath(opts.CustomPath)
	case LocationCascadeur:
		if opts.HostExecutable == "" {
			return "", fmt.Errorf("%w: cascadeur location selected but the executable path is not set", ErrStrategyUnavailable)
		}
		return absPath(filepath.Join(filepath.Dir(opts.HostExecutable), InstallSubfolder))
	case LocationAddon:
		if opts.AddonDir == "" {
			return "", fmt.Errorf("%w: addon location selected but the add-on directory is not set", ErrStrategyUnavailable)
		}
		return absPath(filepath.Join(opts.AddonDir, InstallSubfolder))
	default:
		return "", fmt.Errorf("%w: unknown location %q", ErrStrategyUnavailable, opts.Location)
	}
}

func absPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStrategyUnavailable, err)
	}
	return abs, nil
}

// ParseLocation validates a location name.
func ParseLocation(s string) (Location, error) {
	switch l := Location(s); l {
	case LocationCustom, LocationCascadeur, LocationAddon, LocationTemp:
		return l, nil
	default:
		return "", fmt.Errorf("unknown location %q", s)
	}
}
