// Package app contains the core application wiring. It defines the main App
// struct, its configuration, and the worker lifecycle, decoupled from any
// specific entrypoint like a CLI or server.
package app
