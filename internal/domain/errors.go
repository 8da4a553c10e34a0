package domain

import "errors"

var (
	// ErrInvalidArgument is the caller's fault: bad amount or missing identifiers.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrGatewayUnavailable covers network failures and 5xx answers from the processor.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrGatewayRejected means the processor refused the request as malformed.
	ErrGatewayRejected = errors.New("payment gateway rejected request")
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	// ErrIntegrity is fatal: token collision, duplicate reference, or a
	// conditional update that reports an impossible state.
	ErrIntegrity = errors.New("integrity violation")
)
