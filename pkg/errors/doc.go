// Package errors provides structured error handling with error codes for simple-auth.
//
// Every failure the auth services surface to a caller belongs to one class:
// invalid input, not found, expired, conflict, unauthorized or upstream.
// Each class has one or more ErrorCode values and a fixed HTTP status.
//
// # Basic Usage
//
//	import apperrors "github.com/tendant/simple-auth/pkg/errors"
//
//	// Store failures are wrapped as upstream and never shown verbatim
//	err := apperrors.Upstream(dbErr)
//	apperrors.PublicMessage(err) // "Something went wrong. Please try again later."
//	err.HTTPStatusCode()         // 503
//
//	status := apperrors.MapErrorCodeToHTTPStatus(apperrors.ErrCodeEmailInUse) // 409
package errors
