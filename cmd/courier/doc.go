// Package main hosts the courier CLI entrypoint and command graph.
//
// A single binary serves both roles: the hidden `daemon` command runs the
// dispatch loop, while the remaining commands control that process, run a
// one-off cycle, preview what would be sent, and edit the warehouse file and
// delivery ledger.
//
// Keep this package lean: behaviour belongs in the internal packages and the
// commands here only translate flags into calls and render the results.
package main
