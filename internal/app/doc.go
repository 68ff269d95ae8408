// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the run lifecycle: load a document, walk it
// synchronously or through the dependency scheduler, and hand every leaf to
// the configured sinks. It is decoupled from any specific entrypoint like a
// CLI.
package app
