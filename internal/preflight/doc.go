// Package preflight provides readiness checks for the paths and the mail
// server courier depends on.
//
// The CLI "courier status" command shows every result from RunAll; the
// daemon logs failed checks once at startup and keeps running, since a
// missing share or an unreachable server is retried every cycle anyway.
package preflight
