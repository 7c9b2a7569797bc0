package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/embercore/corehost/bootstrap"
	"github.com/embercore/corehost/hostenv"
)

func main() {
	os.Exit(run(os.Args))
}

// options are the host's own switches. Parsing stops at the first token
// that is not one of them; everything after belongs to the hosted program.
type options struct {
	verbose         bool
	waitForDebugger bool
	help            bool
	inspect         bool
}

func parseOptions(args []string) (options, []string) {
	var o options
	for len(args) > 0 && parseOption(args[0], &o) {
		args = args[1:]
	}
	return o, args
}

func parseOption(arg string, o *options) bool {
	if len(arg) < 2 || (arg[0] != '/' && arg[0] != '-') {
		return false
	}
	switch strings.ToLower(arg[1:]) {
	case "_v":
		o.verbose = true
	case "_d":
		o.waitForDebugger = true
	case "_h":
		o.help = true
	case "_i":
		o.inspect = true
	default:
		return false
	}
	return true
}

func showHelp(w *os.File) {
	fmt.Fprint(w,
		"Runs assemblies on the core runtime\n"+
			"\n"+
			"USAGE: <program>.exe [/_v] [/_d] [/_i] [args...]\n"+
			"\n"+
			"  Runs <program>.dll on the core runtime.\n"+
			"        /_v causes verbose output to be written to the console.\n"+
			"        /_d causes the process to wait for a debugger to attach before starting.\n"+
			"        /_i inspects the resolved host environment without executing.\n"+
			"\n"+
			"  The runtime is searched for in %CORE_ROOT%, then in the directory that this executable is in.\n"+
			"  The program dll needs to be in the same directory as this executable.\n"+
			"  The program dll needs to export the entry point.\n")
}

func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func run(argv []string) int {
	exePath := argv[0]
	if _, err := hostenv.AssemblyPath(exePath); err != nil {
		fmt.Fprintln(os.Stderr, "This executable needs to have 'exe' extension")
		return bootstrap.FailureExitCode
	}

	opts, rest := parseOptions(argv[1:])
	if opts.help {
		showHelp(os.Stdout)
		return bootstrap.FailureExitCode
	}

	env, err := hostenv.ResolveFrom(exePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "corehost: %v\n", err)
		return bootstrap.FailureExitCode
	}
	settings := hostenv.LoadSettings(env.HostPath)

	log := newLogger(opts.verbose || settings.Verbose)
	defer log.Sync()

	if opts.inspect {
		if err := runInspect(env, settings, log); err != nil {
			fmt.Fprintf(os.Stderr, "corehost: %v\n", err)
			return bootstrap.FailureExitCode
		}
		return 0
	}

	o := bootstrap.New(bootstrap.Options{
		Log:             log,
		Settings:        settings,
		WaitForDebugger: opts.waitForDebugger,
	})
	code, err := o.Run(context.Background(), env, rest)
	if err != nil {
		log.Info("execution failed", zap.String("stage", string(o.FailedStage())))
		fmt.Fprintf(os.Stderr, "corehost: %v\n", err)
		return code
	}
	log.Info("execution succeeded", zap.Int("code", code))
	return code
}
