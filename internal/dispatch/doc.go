// Package dispatch runs the report delivery cycle.
//
// A cycle checks the calendar, reads a fresh warehouse snapshot, resolves
// each active warehouse's target date, scans the report folder, drops files
// already in the ledger, opens one mail session, sends one message per
// warehouse and records the delivered names with a single ledger save. Every
// cycle ends in a CycleReport whose Outcome names the terminal state; no
// failure escapes RunCycle.
//
// Loop repeats cycles on a fixed interval. A FolderWaker can end the wait
// early when new report files appear.
package dispatch
