// Package warehouse reads and edits the warehouse rules file.
//
// The file is a small JSON document naming the watched folder, the sender
// address, optional schedule times, a warehouse code to recipient mapping
// (email_config) and per-warehouse date offsets (date_config). It is re-read
// before every dispatch cycle, so Load never fails the caller: a missing or
// malformed file yields the built-in defaults together with an ErrConfig
// error describing what went wrong.
//
// Rule order follows the order of keys in date_config as written in the
// file. The scanner relies on that order when two warehouses could claim the
// same filename.
package warehouse
