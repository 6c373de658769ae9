// Package cli constructs the gitlibs command-line interface, wiring the Cobra
// command hierarchy, the layered configuration loader and structured logging
// around the serve and list commands.
package cli
