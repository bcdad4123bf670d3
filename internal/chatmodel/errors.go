package chatmodel

import "errors"

// Error taxonomy per the error handling design: five categories that
// every component maps its failures into before returning or logging
// them. Callers use errors.Is/errors.As rather than string matching.
var (
	// ErrTransient wraps failures expected to succeed on retry: network
	// timeouts, provider rate limiting, momentary store unavailability.
	ErrTransient = errors.New("transient external failure")

	// ErrParse wraps failures to interpret LLM or wire output as the
	// expected shape (malformed JSON, missing required keys).
	ErrParse = errors.New("parse failure")

	// ErrContract wraps caller misuse: malformed inbound envelopes,
	// unknown fields, invalid configuration values.
	ErrContract = errors.New("contract violation")

	// ErrState wraps operations attempted against an object in the
	// wrong lifecycle state (e.g. retrieving before Ready).
	ErrState = errors.New("invalid state transition")

	// ErrFatalInit wraps failures that make the process unable to
	// start: missing required configuration, unreachable dependency at
	// boot.
	ErrFatalInit = errors.New("fatal initialization failure")
)
