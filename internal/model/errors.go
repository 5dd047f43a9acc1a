package model

import "errors"

var (
	// ErrInputNotFound means the document loader has no source for the slug
	ErrInputNotFound = errors.New("input document not found")

	// ErrSchemaViolation means an oracle payload did not parse against the requested schema,
	// including payloads cut off at the output token ceiling
	ErrSchemaViolation = errors.New("schema violation")

	// ErrTransportFailure means the oracle was unreachable or failed transiently
	ErrTransportFailure = errors.New("transport failure")
)
