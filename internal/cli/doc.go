// Package cli parses command-line arguments into an app.Config and defines
// the exit-code contract between the binary and its caller.
package cli
