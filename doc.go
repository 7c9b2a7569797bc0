// Package corehost is a bootstrap loader for bytecode assemblies: it runs
// the assembly sitting beside the invoking executable, differing from it
// only by extension (foo.exe runs foo.dll).
//
// # Architecture Overview
//
// The module is organized into packages with one responsibility each:
//
//	corehost/            Root package documentation
//	├── hostenv/         Executable path resolution and external settings
//	├── locator/         Runtime library discovery and process-wide pinning
//	├── tpa/             Trusted-platform-assembly list construction
//	├── host/            Runtime host control surface over wazero
//	├── bootstrap/       The orchestration state machine for one run
//	├── errors/          Structured stage/status errors
//	└── cmd/corehost/    The executable entry point
//
// # Run Lifecycle
//
// A run is a fixed forward sequence with no retries:
//
//  1. Locate the runtime library (corert.dll) in %CORE_ROOT%, then in the
//     host directory, and pin it for the process lifetime.
//  2. Resolve the runtime host interface through its fixed entry symbol.
//  3. Configure startup flags, authenticate, start the runtime.
//  4. Build the trust list and create the single execution domain.
//  5. Execute the assembly's entry point and capture its exit code.
//  6. Unload the domain, stop the runtime, release the interface.
//
// Teardown runs once a domain exists even when execution failed; the
// process exit code is the hosted program's, or -1 when a stage failed
// before one was captured.
//
// # Trust List
//
// Candidate directories (%CORE_LIBRARIES%, then the runtime directory) are
// scanned in extension priority order (*.ni.dll, *.dll, *.ni.exe, *.exe)
// and joined into a semicolon-terminated path list. Each logical assembly
// name appears at most once: the first occurrence across the scan order
// wins, which is what lets a CORE_LIBRARIES entry override a framework
// assembly of the same name.
//
// # Concurrency
//
// Orchestration is single-threaded and fully synchronous. The pinned
// runtime library handle and the built trust list are write-once state;
// nothing in this module retries, overlaps or cancels host operations.
package corehost
