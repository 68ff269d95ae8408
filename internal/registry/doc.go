// Package registry is the glue between the CLI and the sink modules.
//
// Every module registers a named Factory. At startup the app validates the
// sink names it was configured with and opens them through the registry,
// which hands back a single Sink fanning each leaf out to all of them.
package registry
