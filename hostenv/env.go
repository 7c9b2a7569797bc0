package hostenv

import "os"

// Environment variables recognized by the host.
const (
	// EnvRuntimeRoot points at a directory to probe for the runtime
	// library before the host's own directory.
	EnvRuntimeRoot = "CORE_ROOT"
	// EnvLibraries points at a directory of additional trusted
	// assemblies, probed before the runtime directory when building the
	// trust list. It also joins the native search path.
	EnvLibraries = "CORE_LIBRARIES"
)

// Settings holds the externally supplied host configuration. Values are
// read once at startup; nothing re-reads the environment afterwards.
type Settings struct {
	// RuntimeRoot overrides where the runtime library is searched first.
	// Empty means no override.
	RuntimeRoot string
	// Libraries names a supplementary trusted-assembly directory. Empty
	// means none.
	Libraries string
	// Verbose enables host logging.
	Verbose bool
}

// LoadSettings merges runtimeconfig file defaults with the process
// environment. Environment variables win over file values.
func LoadSettings(exePath string) Settings {
	s, _ := loadRuntimeConfig(exePath)

	if v, ok := os.LookupEnv(EnvRuntimeRoot); ok && v != "" {
		s.RuntimeRoot = v
	}
	if v, ok := os.LookupEnv(EnvLibraries); ok && v != "" {
		s.Libraries = v
	}
	return s
}
