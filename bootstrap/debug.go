package bootstrap

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"
)

// Gate blocks the run until an external signal allows execution to
// proceed. It exists so the debugger wait can be tested without a real
// console.
type Gate interface {
	Wait(ctx context.Context) error
}

// consoleGate waits for a key press on stdin. There is no timeout: the
// operator either presses a key or kills the process.
type consoleGate struct {
	log *zap.Logger
}

func (g *consoleGate) Wait(ctx context.Context) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		g.log.Info("stdin is not a terminal; skipping debugger wait")
		return nil
	}
	g.log.Info("waiting for the debugger to attach; press any key to continue")
	_, err := bufio.NewReader(os.Stdin).ReadByte()
	return err
}

// debuggerAttached reports whether a debugger is tracing this process,
// read from the kernel's view of the process. Unsupported platforms
// report false.
func debuggerAttached() bool {
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if rest, ok := strings.CutPrefix(line, "TracerPid:"); ok {
			pid, err := strconv.Atoi(strings.TrimSpace(rest))
			return err == nil && pid != 0
		}
	}
	return false
}
