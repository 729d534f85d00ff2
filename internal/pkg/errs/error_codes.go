/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both internally
and in error events delivered to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request or event parameter validation failed.
	ErrInvalidParams = 1001

	// ErrInvalidJSONFormat indicates that an inbound frame was not valid JSON.
	ErrInvalidJSONFormat = 1002

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1003
)

// 2xxx: Chat and Message Business Logic Errors
const (
	// ErrMessageEmpty indicates that a send-message event carried neither content nor an image reference.
	ErrMessageEmpty = 2001

	// ErrMessageContentTooLong indicates that the message content exceeded the maximum length limit.
	ErrMessageContentTooLong = 2002

	// ErrChatNotFound indicates that the referenced chat does not exist in the store.
	ErrChatNotFound = 2003
)

// 3xxx: Session and Security Errors
const (
	// ErrUnauthorized indicates a missing or invalid access token at connection time.
	ErrUnauthorized = 3001

	// ErrIdentityMismatch indicates that an announced identity does not match the
	// identity resolved at connection time.
	ErrIdentityMismatch = 3002
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown is the generic internal error code.
	ErrUnknown = 5000

	// ErrStoreUnavailable indicates that a persistence operation failed and the
	// triggering pipeline was aborted.
	ErrStoreUnavailable = 5001
)
