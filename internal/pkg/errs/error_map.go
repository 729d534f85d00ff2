/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to
standardize both HTTP responses and error events on the WebSocket.
*/
package errs

import "net/http"

// errorMap stores the CustomError corresponding to every application error code.
// The key is the error code, the value carries the user message and HTTP status.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:     {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrInvalidJSONFormat: {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Chat and Message Business Logic Errors
	ErrMessageEmpty:          {Code: ErrMessageEmpty, Message: "Message needs text or an image."},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long."},
	ErrChatNotFound:          {Code: ErrChatNotFound, Message: "Chat not found."},

	// 3xxx: Session and Security Errors
	ErrUnauthorized:     {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrIdentityMismatch: {Code: ErrIdentityMismatch, Message: "Identity does not match this session."},

	// 5xxx: Internal System Errors
	ErrUnknown:          {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStoreUnavailable: {Code: ErrStoreUnavailable, Message: "Could not save your changes. Please try again."},
}
