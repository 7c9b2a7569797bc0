// Package hostenv resolves the host's place on disk and its external
// configuration: the invoking executable's path, directory and name, the
// assembly that executable maps to, and the CORE_ROOT / CORE_LIBRARIES
// settings with optional runtimeconfig file defaults.
package hostenv
