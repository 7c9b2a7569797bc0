// Package host exposes the runtime library's control surface and its
// wazero-backed implementation: startup configuration, authentication,
// domain lifecycle and assembly execution. The control interface is
// obtained from a pinned runtime library by resolving the fixed entry
// symbol; everything after that is driven through RuntimeHost.
package host
