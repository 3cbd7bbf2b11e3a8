package logstore

import "errors"

var (
	// ErrNotFound is returned when a log, a consumer group or a seek target does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned for unparsable timestamps, bad log name lists and similar input errors.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedRecordType is returned when records of a log don't carry a decodable watermark.
	ErrUnsupportedRecordType = errors.New("unsupported record type")

	// ErrCommitFailed is returned when the storage layer could not persist a committed offset.
	ErrCommitFailed = errors.New("commit failed")

	// ErrInterrupted is returned when a blocking operation was cancelled cooperatively.
	ErrInterrupted = errors.New("interrupted")
)
