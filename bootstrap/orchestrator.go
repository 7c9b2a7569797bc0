package bootstrap

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/embercore/corehost/errors"
	"github.com/embercore/corehost/host"
	"github.com/embercore/corehost/hostenv"
	"github.com/embercore/corehost/locator"
	"github.com/embercore/corehost/tpa"
)

// FailureExitCode is the sentinel reported when a run fails before the
// hosted program produced an exit code.
const FailureExitCode = -1

// State tracks the orchestration machine. Transitions are strictly
// forward; any failed transition ends the run in StateFailed.
type State int

const (
	StateInit State = iota
	StateRuntimeLoaded
	StateStarted
	StateDomainCreated
	StateExecuted
	StateDomainUnloaded
	StateStopped
	StateReleased
	StateFailed
)

var stateNames = [...]string{
	"init", "runtime-loaded", "started", "domain-created", "executed",
	"domain-unloaded", "stopped", "released", "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// hostFactory resolves the control interface from a loaded runtime
// library. Tests substitute fakes through it.
type hostFactory func(*locator.Handle, *zap.Logger) (host.RuntimeHost, error)

// Options configure an Orchestrator.
type Options struct {
	// Log receives stage-by-stage progress. Nil disables logging.
	Log *zap.Logger
	// Settings is the merged external configuration.
	Settings hostenv.Settings
	// WaitForDebugger blocks after domain creation until the gate opens,
	// unless a debugger is already attached.
	WaitForDebugger bool
	// Gate overrides the console gate. Only consulted when
	// WaitForDebugger is set.
	Gate Gate
	// NewHost overrides runtime-host acquisition.
	NewHost hostFactory
	// Locator overrides the runtime-library locator.
	Locator *locator.Locator
}

// Orchestrator drives one run: locate and pin the runtime library, start
// the runtime host, create the execution domain, execute the assembly,
// and tear everything down in fixed order. One Orchestrator serves one
// run; nothing is retried.
type Orchestrator struct {
	log     *zap.Logger
	opts    Options
	state   State
	failed  errors.Stage
	exit    int
	exitSet bool
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.NewHost == nil {
		opts.NewHost = host.GetRuntimeHost
	}
	if opts.Locator == nil {
		opts.Locator = locator.New(opts.Log)
	}
	if opts.Gate == nil {
		opts.Gate = &consoleGate{log: opts.Log}
	}
	return &Orchestrator{log: opts.Log, opts: opts, state: StateInit}
}

// State returns the machine's current state.
func (o *Orchestrator) State() State { return o.state }

// FailedStage returns the stage a failed run stopped at.
func (o *Orchestrator) FailedStage() errors.Stage { return o.failed }

// Run executes the assembly beside the host executable described by env,
// forwarding args verbatim. It returns the hosted program's exit code on
// success. On failure the returned error names the failing stage and the
// exit code is the last captured one, or FailureExitCode when execution
// never produced one.
func (o *Orchestrator) Run(ctx context.Context, env *hostenv.HostEnvironment, args []string) (int, error) {
	err := o.run(ctx, env, args)
	if err != nil {
		o.failed = errors.StageOf(err)
		o.state = StateFailed
		if !o.exitSet {
			return FailureExitCode, err
		}
		return o.exit, err
	}
	return o.exit, nil
}

func (o *Orchestrator) run(ctx context.Context, env *hostenv.HostEnvironment, args []string) error {
	// Init -> RuntimeLoaded
	handle, err := o.opts.Locator.Locate(ctx, o.opts.Settings.RuntimeRoot, env.HostDir)
	if err != nil {
		return err
	}
	rth, err := o.opts.NewHost(handle, o.log)
	if err != nil {
		return err
	}
	o.state = StateRuntimeLoaded

	// RuntimeLoaded -> Started
	if err := rth.SetStartupFlags(host.StartupLoaderOptimizationSingleDomain | host.StartupSingleDomain); err != nil {
		return err
	}
	if err := rth.Authenticate(host.AuthenticationKey); err != nil {
		return err
	}
	if err := rth.Start(ctx); err != nil {
		return err
	}
	o.state = StateStarted

	// Started -> DomainCreated
	assemblyPath, err := o.resolveAssembly(env)
	if err != nil {
		return err
	}
	appDir := filepath.Dir(assemblyPath)
	props := o.domainProperties(appDir, handle)

	o.log.Info("creating execution domain",
		zap.String(host.PropTrustedPlatformAssemblies, props[host.PropTrustedPlatformAssemblies]),
		zap.String(host.PropAppPaths, props[host.PropAppPaths]),
		zap.String(host.PropAppNIPaths, props[host.PropAppNIPaths]),
		zap.String(host.PropNativeSearchDirectories, props[host.PropNativeSearchDirectories]))

	domainID, err := rth.CreateDomain(ctx, env.HostName,
		host.DomainEnablePlatformSpecificApps|host.DomainEnableNativeInterop, props)
	if err != nil {
		return err
	}
	o.state = StateDomainCreated

	// Optional debug gate. Blocking here is not a state transition.
	if o.opts.WaitForDebugger && !debuggerAttached() {
		if err := o.opts.Gate.Wait(ctx); err == nil {
			if debuggerAttached() {
				o.log.Info("debugger is attached")
			} else {
				o.log.Info("debugger failed to attach")
			}
		}
	}

	// DomainCreated -> Executed, then unconditional teardown: the domain
	// exists, so unload and stop run even when execution failed, and a
	// teardown failure is still surfaced.
	code, execErr := rth.ExecuteAssembly(ctx, domainID, assemblyPath, args)
	if execErr == nil {
		o.exit = int(code)
		o.exitSet = true
		o.state = StateExecuted
		o.log.Info("app exited", zap.Int("code", o.exit))
	}

	unloadErr := rth.UnloadDomain(ctx, domainID)
	if execErr == nil && unloadErr == nil {
		o.state = StateDomainUnloaded
	}

	stopErr := rth.Stop(ctx)
	if execErr == nil && unloadErr == nil && stopErr == nil {
		o.state = StateStopped
	}

	rth.Release()
	if execErr != nil {
		return execErr
	}
	if unloadErr != nil {
		return unloadErr
	}
	if stopErr != nil {
		return stopErr
	}
	o.state = StateReleased
	return nil
}

// resolveAssembly maps the executable to its assembly, resolves where the
// file actually is, and validates it is a loadable module for this
// runtime. A version mismatch or missing file fails here, before any
// domain exists.
func (o *Orchestrator) resolveAssembly(env *hostenv.HostEnvironment) (string, error) {
	path, err := hostenv.AssemblyPath(env.HostPath)
	if err != nil {
		return "", err
	}
	if resolved, evalErr := filepath.EvalSymlinks(path); evalErr == nil {
		path = resolved
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(errors.StageCreateDomain, errors.CodeNotFound, err,
			"load target assembly "+path)
	}
	if !bytes.HasPrefix(data, moduleMagic) {
		return "", errors.BadFormat(errors.StageCreateDomain, path, nil)
	}

	o.log.Info("loaded target assembly", zap.String("path", path))
	return path, nil
}

// moduleMagic is the module header this runtime executes: wasm magic plus
// binary version 1. A module with a different version is the moral
// equivalent of an architecture mismatch.
var moduleMagic = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// domainProperties assembles the four named properties the domain is
// created with.
func (o *Orchestrator) domainProperties(appDir string, handle *locator.Handle) map[string]string {
	sep := tpa.ListSeparator

	trustDirs := []string{o.opts.Settings.Libraries, handle.Dir}
	trustList := tpa.NewBuilder(trustDirs, tpa.WithLogger(o.log)).List()

	nativeDirs := []string{appDir}
	if o.opts.Settings.Libraries != "" {
		nativeDirs = append(nativeDirs, o.opts.Settings.Libraries)
	}
	nativeDirs = append(nativeDirs, handle.Dir)

	return map[string]string{
		host.PropTrustedPlatformAssemblies: trustList,
		host.PropAppPaths:                  appDir,
		host.PropAppNIPaths:                appDir + sep + appDir,
		host.PropNativeSearchDirectories:   strings.Join(nativeDirs, sep),
	}
}
