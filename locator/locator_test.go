package locator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	hosterrors "github.com/embercore/corehost/errors"
	"github.com/embercore/corehost/internal/testwasm"
)

func writeLibrary(t *testing.T, dir string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, RuntimeLibraryName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write library: %v", err)
	}
	return path
}

func TestLocate_FromHostDir(t *testing.T) {
	ctx := context.Background()
	hostDir := t.TempDir()
	path := writeLibrary(t, hostDir, testwasm.ModuleWithExports("get_runtime_host"))

	h, err := New(nil).Locate(ctx, "", hostDir)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}

	want, _ := filepath.EvalSymlinks(path)
	if h.Path != want {
		t.Fatalf("path = %q, want %q", h.Path, want)
	}
	if h.Dir != filepath.Dir(want) {
		t.Fatalf("dir = %q, want %q", h.Dir, filepath.Dir(want))
	}
	if h.Module() == nil || h.Runtime() == nil {
		t.Fatal("handle missing compiled module or runtime")
	}
}

func TestLocate_OverrideWinsOverHostDir(t *testing.T) {
	ctx := context.Background()
	override := t.TempDir()
	hostDir := t.TempDir()
	overridePath := writeLibrary(t, override, testwasm.ModuleWithExports("get_runtime_host"))
	writeLibrary(t, hostDir, testwasm.ModuleWithExports("get_runtime_host"))

	h, err := New(nil).Locate(ctx, override, hostDir)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	want, _ := filepath.EvalSymlinks(overridePath)
	if h.Path != want {
		t.Fatalf("loaded %q, want override copy %q", h.Path, want)
	}
}

func TestLocate_OverrideBadFallsBackToHostDir(t *testing.T) {
	ctx := context.Background()
	override := t.TempDir()
	hostDir := t.TempDir()
	writeLibrary(t, override, []byte("not wasm"))
	goodPath := writeLibrary(t, hostDir, testwasm.EmptyModule())

	h, err := New(nil).Locate(ctx, override, hostDir)
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	want, _ := filepath.EvalSymlinks(goodPath)
	if h.Path != want {
		t.Fatalf("loaded %q, want host copy %q", h.Path, want)
	}
}

func TestLocate_NotFound(t *testing.T) {
	ctx := context.Background()

	_, err := New(nil).Locate(ctx, t.TempDir(), t.TempDir())
	if err == nil {
		t.Fatal("expected discovery failure")
	}

	var herr *hosterrors.Error
	if !errors.As(err, &herr) {
		t.Fatalf("error is not structured: %v", err)
	}
	if herr.Stage != hosterrors.StageLocate {
		t.Fatalf("stage = %q, want locate", herr.Stage)
	}
}

func TestLocate_IdempotentAfterSuccess(t *testing.T) {
	ctx := context.Background()
	hostDir := t.TempDir()
	path := writeLibrary(t, hostDir, testwasm.ModuleWithExports("get_runtime_host"))

	l := New(nil)
	first, err := l.Locate(ctx, "", hostDir)
	if err != nil {
		t.Fatalf("first locate: %v", err)
	}

	// Remove the file: a second call must serve the pinned handle
	// without reattempting the load.
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	second, err := l.Locate(ctx, "", hostDir)
	if err != nil {
		t.Fatalf("second locate: %v", err)
	}
	if first != second {
		t.Fatal("second call returned a different handle")
	}
}

func TestLocate_FailureRetainsNoState(t *testing.T) {
	ctx := context.Background()
	hostDir := t.TempDir()

	l := New(nil)
	if _, err := l.Locate(ctx, "", hostDir); err == nil {
		t.Fatal("expected failure")
	}

	// A library appearing later can still be loaded by the same locator.
	writeLibrary(t, hostDir, testwasm.EmptyModule())
	if _, err := l.Locate(ctx, "", hostDir); err != nil {
		t.Fatalf("locate after failure: %v", err)
	}
}
