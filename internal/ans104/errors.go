package ans104

import "errors"

var (
	// Decode errors.
	ErrTruncated          = errors.New("dataitem: truncated input")
	ErrInvalidFieldLength = errors.New("dataitem: invalid field length")
	ErrUnsupportedVersion = errors.New("dataitem: unsupported signature type")

	// Sign/verify errors.
	ErrMalformed  = errors.New("dataitem: missing required fields")
	ErrSigningKey = errors.New("dataitem: malformed signing key")
)
