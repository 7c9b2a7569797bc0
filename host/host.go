package host

import (
	"context"

	"go.uber.org/zap"

	"github.com/embercore/corehost/errors"
	"github.com/embercore/corehost/locator"
)

// EntrySymbol is the well-known export the runtime library must expose for
// interface acquisition.
const EntrySymbol = "get_runtime_host"

// AssemblyEntrySymbol is the entry point an executable assembly must export.
const AssemblyEntrySymbol = "_start"

// SupportModuleName is the name the runtime library instance is registered
// under inside the started runtime; assemblies import it by this name.
const SupportModuleName = "corert"

// AuthenticationKey is the fixed credential a host caller must present
// before the runtime can be started.
const AuthenticationKey uint64 = 0x8ca1a5c7cad9bb9f

// StartupFlags configure the runtime before start.
type StartupFlags uint32

const (
	// StartupLoaderOptimizationSingleDomain optimizes loading for a
	// process that hosts a single domain.
	StartupLoaderOptimizationSingleDomain StartupFlags = 1 << 0
	// StartupSingleDomain restricts the process to one execution domain.
	StartupSingleDomain StartupFlags = 1 << 1
)

// DomainFlags configure an execution domain at creation.
type DomainFlags uint32

const (
	// DomainEnablePlatformSpecificApps allows assemblies marked platform
	// specific to run; by default only platform-neutral ones may.
	DomainEnablePlatformSpecificApps DomainFlags = 1 << 0
	// DomainEnableNativeInterop allows the domain to call into native
	// code through the native search directories.
	DomainEnableNativeInterop DomainFlags = 1 << 1
)

// Property names accepted by CreateDomain. Exactly these four are passed.
const (
	PropTrustedPlatformAssemblies = "TRUSTED_PLATFORM_ASSEMBLIES"
	PropAppPaths                  = "APP_PATHS"
	PropAppNIPaths                = "APP_NI_PATHS"
	PropNativeSearchDirectories   = "NATIVE_DLL_SEARCH_DIRECTORIES"
)

// RuntimeHost is the control surface of the loaded runtime library. Calls
// follow a fixed lifecycle: SetStartupFlags, Authenticate, Start,
// CreateDomain, ExecuteAssembly, UnloadDomain, Stop, Release. Every
// failure carries a stage and status code. Implementations are not safe
// for concurrent use; orchestration is single-threaded.
type RuntimeHost interface {
	// SetStartupFlags applies the startup configuration. Must be called
	// before Start.
	SetStartupFlags(flags StartupFlags) error

	// Authenticate presents the host credential. The runtime refuses to
	// start without a successful authentication.
	Authenticate(key uint64) error

	// Start brings the runtime up.
	Start(ctx context.Context) error

	// CreateDomain creates an execution domain with the given friendly
	// name, flags and named properties, returning its id.
	CreateDomain(ctx context.Context, friendlyName string, flags DomainFlags, props map[string]string) (uint32, error)

	// ExecuteAssembly runs the assembly's entry point inside a domain and
	// returns the hosted program's exit code.
	ExecuteAssembly(ctx context.Context, domainID uint32, assemblyPath string, args []string) (uint32, error)

	// UnloadDomain tears a domain down, blocking until done.
	UnloadDomain(ctx context.Context, domainID uint32) error

	// Stop shuts the runtime down. The runtime library itself stays
	// pinned in the process.
	Stop(ctx context.Context) error

	// Release drops the interface reference. It has no failure mode and
	// the host must not be used afterwards.
	Release()
}

// GetRuntimeHost resolves the fixed entry symbol on the loaded runtime
// library and returns its control interface. A library that does not
// export the symbol yields a resolve-stage failure.
func GetRuntimeHost(handle *locator.Handle, log *zap.Logger) (RuntimeHost, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if handle == nil {
		return nil, errors.InvalidState(errors.StageResolve, "no runtime library loaded")
	}

	log.Info("resolving runtime host entry point", zap.String("symbol", EntrySymbol))
	if _, ok := handle.Module().ExportedFunctions()[EntrySymbol]; !ok {
		return nil, errors.NotFound(errors.StageResolve, "entry symbol", EntrySymbol)
	}

	return &wazeroHost{
		log:     log,
		handle:  handle,
		domains: make(map[uint32]*domain),
	}, nil
}
