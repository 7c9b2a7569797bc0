package hostenv

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/embercore/corehost/errors"
)

// HostEnvironment describes where the invoking executable lives. All other
// host files are expected relative to it.
type HostEnvironment struct {
	// HostPath is the absolute path to the invoking executable.
	HostPath string
	// HostDir is the directory containing the executable, without a
	// trailing separator.
	HostDir string
	// HostName is the executable file name without any path.
	HostName string
}

// Resolve discovers the invoking executable and derives its directory and
// name. Symlinks are evaluated so the directory reflects where the file
// actually is, matching loader resolution semantics.
func Resolve() (*HostEnvironment, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, errors.Wrap(errors.StagePrecondition, errors.CodeNotFound, err, "resolve executable path")
	}
	return ResolveFrom(exe)
}

// ResolveFrom builds a HostEnvironment from an explicit executable path.
func ResolveFrom(path string) (*HostEnvironment, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.StagePrecondition, errors.CodeInvalidArg, err, "resolve executable path")
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return &HostEnvironment{
		HostPath: abs,
		HostDir:  filepath.Dir(abs),
		HostName: filepath.Base(abs),
	}, nil
}

// ModuleDir returns the directory containing a loaded module, derived from
// the module's resolved path.
func ModuleDir(modulePath string) string {
	return filepath.Dir(modulePath)
}

// AssemblyPath maps the host executable path to its managed assembly by
// replacing the trailing three-character extension in place: foo.exe runs
// foo.dll. The executable must carry the exe extension.
func AssemblyPath(exePath string) (string, error) {
	ext := filepath.Ext(exePath)
	if !strings.EqualFold(ext, ".exe") {
		return "", errors.Precondition("this executable needs to have 'exe' extension")
	}
	return exePath[:len(exePath)-3] + "dll", nil
}
