// Package errors defines the error taxonomy shared by the sync layer:
//
//   - connection errors are transient; the stream client handles them
//     internally with backoff and only surfaces them as notifications
//   - parse errors are invalid; malformed payloads are logged and dropped
//   - transport errors are transient; the dispatcher propagates them to
//     every waiter and performs no retries of its own
//   - configuration errors are fatal; they are surfaced immediately
//
// Errors are classified with ClassifiedError and wrapped with the
// Wrap/WrapTransient/WrapInvalid/WrapFatal helpers so that call sites
// produce the uniform "component.method: action failed: cause" shape.
package errors
