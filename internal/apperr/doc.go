// Package apperr defines the error taxonomy shared by the notebox services
// and its mapping onto HTTP status codes.
//
// Components return *Error values built with E. Callers test the kind with
// errors.Is against the kind sentinels:
//
//	if errors.Is(err, apperr.ErrNotFound) { ... }
//
// Status and Message translate any error into the status code and the safe,
// client-facing message. Storage and internal failures never expose their
// cause; the server logs it instead.
package apperr
