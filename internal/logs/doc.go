// Package logs reads daemon log files for the `courier logs` viewer.
//
// Tail returns the last N lines or everything after a byte offset, with an
// optional case-insensitive filter, and Follow keeps polling for new lines
// until the context ends. When the courier.log pointer moves to a new, shorter
// file after a daemon restart, reading starts over from the top.
package logs
