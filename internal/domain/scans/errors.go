package scans

import "errors"

// ErrInvalidRequest rejects malformed input before any dispatch.
var ErrInvalidRequest = errors.New("invalid scan request")

// ErrPartialPersist marks a blob that was stored without its metadata
// record. The blob is the artifact of record and is never rolled back;
// the missing index entry is surfaced as a per-image warning.
var ErrPartialPersist = errors.New("blob stored but metadata record failed")

// ErrRecordNotFound is returned by record stores for unknown ids.
var ErrRecordNotFound = errors.New("scan record not found")
