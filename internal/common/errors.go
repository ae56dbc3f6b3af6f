// Package common defines shared constants and sentinel errors used across
// the agent's layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository/storage-level errors.
	ErrNotFound = errors.New("not found")

	// Placement errors.
	ErrBackendUnavailable = errors.New("storage backend unavailable")
	ErrQuotaExceeded      = errors.New("storage quota exceeded")
	ErrInvalidHint        = errors.New("invalid placement hint")

	// Ingestion errors. ErrIndexIncomplete is returned together with a
	// storage record when the object was stored durably but tag indexing
	// failed; the item exists but is not yet queryable.
	ErrIndexIncomplete = errors.New("stored but tag indexing incomplete")

	// Tag query errors.
	ErrEmptyFilter     = errors.New("empty tag filter list")
	ErrInvalidPageSize = errors.New("page size out of range")
	ErrInvalidCursor   = errors.New("invalid pagination cursor")

	// Migration errors.
	ErrNotEligible      = errors.New("dataitem not eligible for permanent storage")
	ErrSizeExceeded     = errors.New("dataitem exceeds free submission limit")
	ErrSubmissionFailed = errors.New("bundler submission failed")

	// Auth errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// DataProtocolName tags every agent-signed dataitem so Load-S3 uploads can
// be discovered on the permanent ledger.
const DataProtocolName = "Load-S3"

// DataitemsAddress is the well-known address of the Load-S3 uploader key,
// reported by the info endpoint when no local signer address is supplied.
const DataitemsAddress = "2BBwe2pSXn_Tp-q_mHry0Obp88dc7L-eDIWx0_BUfD0"
