// Package notifications publishes alerts about dispatch cycles to ntfy.
//
// Alerts go out when a cycle cannot run (mail server or report folder
// unavailable), when a warehouse batch is not delivered, or when delivered
// files could not be recorded. The same alert is not repeated on consecutive
// cycles. Without a configured topic the service is a no-op.
package notifications
