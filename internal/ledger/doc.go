// Package ledger records which report files have already been mailed.
//
// The ledger is a set of bare filenames. It only grows during normal
// operation: the dispatch cycle loads it, merges in the names it delivered,
// and saves the union once per cycle. Two backends exist: a flat JSON list
// (the default, readable by hand) and a SQLite table that also keeps the time
// each name was recorded.
//
// Load never fails the caller. A missing, unreadable, or malformed ledger
// yields an empty set and an ErrRead error so the caller can log it and carry
// on; the cost is that files may be mailed a second time.
package ledger
