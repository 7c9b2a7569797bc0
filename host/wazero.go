package host

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/embercore/corehost/errors"
	"github.com/embercore/corehost/locator"
	"github.com/embercore/corehost/tpa"
)

// wazeroHost implements RuntimeHost over the wazero runtime the library
// was pinned into. The runtime itself is never closed here: stopping the
// host closes what Start instantiated, nothing more.
type wazeroHost struct {
	log    *zap.Logger
	handle *locator.Handle

	flags         StartupFlags
	flagsSet      bool
	authenticated bool
	started       bool
	released      bool

	wasiCloser api.Closer
	support    api.Module

	domains    map[uint32]*domain
	nextDomain uint32
}

// domain is one execution context inside the started runtime. It owns the
// module instances created on its behalf and releases them on unload.
type domain struct {
	id      uint32
	name    string
	flags   DomainFlags
	props   map[string]string
	trusted map[string]string // logical name -> assembly path
	loaded  map[string]api.Module
	main    api.Module
}

func (h *wazeroHost) SetStartupFlags(flags StartupFlags) error {
	if err := h.usable(); err != nil {
		return err
	}
	if h.started {
		return errors.InvalidState(errors.StageStartup, "runtime already started")
	}
	h.flags = flags
	h.flagsSet = true
	return nil
}

func (h *wazeroHost) Authenticate(key uint64) error {
	if err := h.usable(); err != nil {
		return err
	}
	if key != AuthenticationKey {
		return errors.New(errors.StageAuthenticate, errors.CodeUnauthorized,
			"authentication key rejected")
	}
	h.authenticated = true
	return nil
}

func (h *wazeroHost) Start(ctx context.Context) error {
	if err := h.usable(); err != nil {
		return err
	}
	if h.started {
		return errors.InvalidState(errors.StageStart, "runtime already started")
	}
	if !h.flagsSet {
		return errors.InvalidState(errors.StageStart, "startup flags not set")
	}
	if !h.authenticated {
		return errors.New(errors.StageStart, errors.CodeUnauthorized, "host not authenticated")
	}

	rt := h.handle.Runtime()

	wasiCloser, err := wasi_snapshot_preview1.Instantiate(ctx, rt)
	if err != nil {
		return errors.Wrap(errors.StageStart, errors.CodeInvalidState, err,
			"instantiate system interface")
	}

	// Bring the support library up under its well-known name so domain
	// assemblies can import it. It has no entry point of its own.
	support, err := rt.InstantiateModule(ctx, h.handle.Module(),
		wazero.NewModuleConfig().WithName(SupportModuleName).WithStartFunctions())
	if err != nil {
		_ = wasiCloser.Close(ctx)
		return errors.Wrap(errors.StageStart, errors.CodeInvalidState, err,
			"instantiate runtime support library")
	}

	h.wasiCloser = wasiCloser
	h.support = support
	h.started = true
	h.log.Info("runtime started", zap.Uint32("flags", uint32(h.flags)))
	return nil
}

func (h *wazeroHost) CreateDomain(ctx context.Context, friendlyName string, flags DomainFlags, props map[string]string) (uint32, error) {
	if err := h.usable(); err != nil {
		return 0, err
	}
	if !h.started {
		return 0, errors.InvalidState(errors.StageCreateDomain, "runtime not started")
	}
	if h.flags&StartupSingleDomain != 0 && len(h.domains) > 0 {
		return 0, errors.New(errors.StageCreateDomain, errors.CodeDomainFailure,
			"single-domain mode: a domain already exists")
	}
	if props[PropTrustedPlatformAssemblies] == "" {
		return 0, errors.New(errors.StageCreateDomain, errors.CodeInvalidArg,
			"missing %s property", PropTrustedPlatformAssemblies)
	}

	h.nextDomain++
	d := &domain{
		id:      h.nextDomain,
		name:    friendlyName,
		flags:   flags,
		props:   props,
		trusted: indexTrustList(props[PropTrustedPlatformAssemblies]),
		loaded:  make(map[string]api.Module),
	}
	h.domains[d.id] = d

	h.log.Info("created execution domain",
		zap.Uint32("id", d.id),
		zap.String("name", friendlyName),
		zap.Int("trusted", len(d.trusted)))
	return d.id, nil
}

func (h *wazeroHost) ExecuteAssembly(ctx context.Context, domainID uint32, assemblyPath string, args []string) (uint32, error) {
	if err := h.usable(); err != nil {
		return 0, err
	}
	if !h.started {
		return 0, errors.InvalidState(errors.StageExecute, "runtime not started")
	}
	d, ok := h.domains[domainID]
	if !ok {
		return 0, errors.New(errors.StageExecute, errors.CodeInvalidArg,
			"no such domain %d", domainID)
	}

	data, err := os.ReadFile(assemblyPath)
	if err != nil {
		return 0, errors.Wrap(errors.StageExecute, errors.CodeNotFound, err,
			fmt.Sprintf("load assembly %s", assemblyPath))
	}

	rt := h.handle.Runtime()
	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		return 0, errors.BadFormat(errors.StageExecute, assemblyPath, err)
	}
	if _, ok := compiled.ExportedFunctions()[AssemblyEntrySymbol]; !ok {
		return 0, errors.NotFound(errors.StageExecute, "assembly entry point", AssemblyEntrySymbol)
	}

	if err := h.bindImports(ctx, d, compiled, map[string]bool{}); err != nil {
		return 0, err
	}

	cfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs(append([]string{assemblyPath}, args...)...).
		WithStdin(os.Stdin).
		WithStdout(os.Stdout).
		WithStderr(os.Stderr).
		WithFSConfig(domainFS(d))

	h.log.Info("executing assembly",
		zap.Uint32("domain", domainID),
		zap.String("path", assemblyPath),
		zap.Strings("args", args))

	mod, err := rt.InstantiateModule(ctx, compiled, cfg)
	if mod != nil {
		d.main = mod
	}
	if err != nil {
		var exitErr *sys.ExitError
		if stderrors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, errors.New(errors.StageExecute, errors.CodeExecFailure,
			"assembly execution failed: %v", err)
	}
	return 0, nil
}

// bindImports instantiates, by imported module name, every trusted
// assembly the compiled module depends on. Dependencies of dependencies
// are bound the same way; binding is a set of modules currently being
// resolved, so a dependency cycle fails instead of recursing. The system
// interface and the support library are already present in the runtime.
func (h *wazeroHost) bindImports(ctx context.Context, d *domain, compiled wazero.CompiledModule, binding map[string]bool) error {
	for _, imp := range compiled.ImportedFunctions() {
		modName, _, ok := imp.Import()
		if !ok || modName == wasi_snapshot_preview1.ModuleName || modName == SupportModuleName {
			continue
		}
		if _, done := d.loaded[modName]; done {
			continue
		}
		if binding[modName] {
			return errors.New(errors.StageExecute, errors.CodeExecFailure,
				"circular dependency on trusted assembly %s", modName)
		}

		path, ok := d.trusted[tpa.LogicalName(modName)]
		if !ok {
			path, ok = probeAppPaths(d.props[PropAppPaths], modName)
		}
		if !ok {
			return errors.NotFound(errors.StageExecute, "trusted assembly", modName)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrap(errors.StageExecute, errors.CodeNotFound, err,
				fmt.Sprintf("load trusted assembly %s", path))
		}
		dep, err := h.handle.Runtime().CompileModule(ctx, data)
		if err != nil {
			return errors.BadFormat(errors.StageExecute, path, err)
		}
		binding[modName] = true
		if err := h.bindImports(ctx, d, dep, binding); err != nil {
			return err
		}
		delete(binding, modName)

		inst, err := h.handle.Runtime().InstantiateModule(ctx, dep,
			wazero.NewModuleConfig().WithName(modName).WithStartFunctions())
		if err != nil {
			return errors.New(errors.StageExecute, errors.CodeExecFailure,
				"bind trusted assembly %s: %v", modName, err)
		}
		d.loaded[modName] = inst
		h.log.Info("bound trusted assembly",
			zap.String("module", modName), zap.String("path", path))
	}
	return nil
}

func (h *wazeroHost) UnloadDomain(ctx context.Context, domainID uint32) error {
	if err := h.usable(); err != nil {
		return err
	}
	if !h.started {
		return errors.InvalidState(errors.StageUnload, "runtime not started")
	}
	d, ok := h.domains[domainID]
	if !ok {
		return errors.New(errors.StageUnload, errors.CodeDomainFailure,
			"no such domain %d", domainID)
	}

	var failed error
	if d.main != nil {
		if err := d.main.Close(ctx); err != nil && failed == nil {
			failed = err
		}
	}
	for name, mod := range d.loaded {
		if err := mod.Close(ctx); err != nil && failed == nil {
			failed = fmt.Errorf("close %s: %w", name, err)
		}
	}
	delete(h.domains, domainID)

	if failed != nil {
		return errors.Wrap(errors.StageUnload, errors.CodeDomainFailure, failed,
			fmt.Sprintf("unload domain %d", domainID))
	}
	h.log.Info("unloaded execution domain", zap.Uint32("id", domainID))
	return nil
}

func (h *wazeroHost) Stop(ctx context.Context) error {
	if err := h.usable(); err != nil {
		return err
	}
	if !h.started {
		return errors.InvalidState(errors.StageStop, "runtime not started")
	}

	var failed error
	if h.support != nil {
		if err := h.support.Close(ctx); err != nil {
			failed = err
		}
		h.support = nil
	}
	if h.wasiCloser != nil {
		if err := h.wasiCloser.Close(ctx); err != nil && failed == nil {
			failed = err
		}
		h.wasiCloser = nil
	}
	h.started = false

	if failed != nil {
		return errors.Wrap(errors.StageStop, errors.CodeInvalidState, failed, "stop runtime")
	}
	h.log.Info("runtime stopped")
	return nil
}

func (h *wazeroHost) Release() {
	h.released = true
	h.log.Info("released runtime host interface")
}

func (h *wazeroHost) usable() error {
	if h.released {
		return errors.InvalidState(errors.StageResolve, "host interface already released")
	}
	return nil
}

// indexTrustList maps each trust-list entry's logical name to its path.
func indexTrustList(list string) map[string]string {
	index := make(map[string]string)
	for _, entry := range strings.Split(list, tpa.ListSeparator) {
		if entry == "" {
			continue
		}
		name := tpa.LogicalName(filepath.Base(entry))
		if _, ok := index[name]; !ok {
			index[name] = entry
		}
	}
	return index
}

// probeAppPaths looks for an assembly by simple name in the domain's
// application probe directories, optimized images first, matching the
// trust-list extension order.
func probeAppPaths(appPaths, name string) (string, bool) {
	exts := []string{".ni.dll", ".dll", ".ni.exe", ".exe"}
	for _, dir := range strings.Split(appPaths, tpa.ListSeparator) {
		if dir == "" {
			continue
		}
		for _, ext := range exts {
			path := filepath.Join(dir, name+ext)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, true
			}
		}
	}
	return "", false
}

// domainFS maps the domain's native search directories into the guest: the
// first existing directory (the application directory) becomes the root,
// later ones appear under /native/<dirname>.
func domainFS(d *domain) wazero.FSConfig {
	fs := wazero.NewFSConfig()
	first := true
	for _, dir := range strings.Split(d.props[PropNativeSearchDirectories], tpa.ListSeparator) {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if first {
			fs = fs.WithDirMount(dir, "/")
			first = false
			continue
		}
		fs = fs.WithReadOnlyDirMount(dir, "/native/"+filepath.Base(dir))
	}
	return fs
}
