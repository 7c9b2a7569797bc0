// Package bootstrap drives a complete host run as a strictly forward
// state machine: locate and pin the runtime library, start the runtime
// host, create the single execution domain, execute the target assembly,
// then unload, stop and release in fixed order. There are no retries;
// any failed transition is terminal and reported with its stage.
package bootstrap
