package locator

import (
	"context"
	"os"
	"path/filepath"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/embercore/corehost/errors"
)

// RuntimeLibraryName is the file name of the runtime support library the
// locator probes for.
const RuntimeLibraryName = "corert.dll"

// Handle is the process-wide reference to the loaded runtime library.
// The library does not support unloading: once a Handle exists its backing
// wazero runtime stays alive for the remainder of the process, so releasing
// a Handle is a semantic no-op.
type Handle struct {
	// Path is the resolved path the library was actually loaded from.
	Path string
	// Dir is the canonical runtime directory, derived from Path rather
	// than from the requested candidate directory.
	Dir string

	compiled wazero.CompiledModule
	rt       wazero.Runtime
}

// Module returns the compiled runtime library.
func (h *Handle) Module() wazero.CompiledModule { return h.compiled }

// Runtime returns the wazero runtime the library is pinned into. Callers
// must not close it.
func (h *Handle) Runtime() wazero.Runtime { return h.rt }

// Locator finds and loads the runtime library. It caches the first
// successful load; later calls return the same Handle without touching the
// filesystem again. Not safe for concurrent use: orchestration is
// single-threaded and the cache is written at most once.
type Locator struct {
	log    *zap.Logger
	pinned *Handle
}

// New creates a Locator. A nil logger disables logging.
func New(log *zap.Logger) *Locator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Locator{log: log}
}

// Locate loads the runtime library from overrideDir if supplied, falling
// back to hostDir. On success the library is pinned and the Handle cached
// for every later call. On total failure no state is retained and the
// discovery error is returned; there are no further candidates and no
// retries.
func (l *Locator) Locate(ctx context.Context, overrideDir, hostDir string) (*Handle, error) {
	if l.pinned != nil {
		return l.pinned, nil
	}

	rt := wazero.NewRuntime(ctx)

	if overrideDir != "" {
		if h := l.tryLoad(ctx, rt, overrideDir); h != nil {
			l.pinned = h
			return h, nil
		}
	} else {
		l.log.Info("runtime root override not set; skipping",
			zap.String("env", "CORE_ROOT"))
	}

	if h := l.tryLoad(ctx, rt, hostDir); h != nil {
		l.pinned = h
		return h, nil
	}

	_ = rt.Close(ctx)
	return nil, errors.NotFound(errors.StageLocate, "runtime library", RuntimeLibraryName)
}

// tryLoad attempts one load from dir. Any failure is logged and reported
// as nil so the caller can move to the next candidate.
func (l *Locator) tryLoad(ctx context.Context, rt wazero.Runtime, dir string) *Handle {
	path := filepath.Join(dir, RuntimeLibraryName)
	l.log.Info("attempting to load runtime library", zap.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		l.log.Info("failed to load runtime library",
			zap.String("path", path), zap.Error(err))
		return nil
	}

	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		l.log.Info("runtime library is not a loadable module",
			zap.String("path", path), zap.Error(err))
		return nil
	}

	// Record where the library really is, not where it was asked for.
	resolved, err := filepath.Abs(path)
	if err == nil {
		if real, evalErr := filepath.EvalSymlinks(resolved); evalErr == nil {
			resolved = real
		}
	} else {
		resolved = path
	}

	l.log.Info("loaded runtime library", zap.String("path", resolved))

	return &Handle{
		Path:     resolved,
		Dir:      filepath.Dir(resolved),
		compiled: compiled,
		rt:       rt,
	}
}
