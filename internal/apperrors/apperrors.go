// Package apperrors defines the structured error taxonomy of the analysis
// pipeline. Per-slice track failures are aggregated into run statistics and
// never surface as hard failures; only slice IO, coordinate-map rebuild
// failure, and fusion internal errors abort a run.
package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// Code classifies pipeline errors.
type Code string

const (
	CodeSliceIO              Code = "SLICE_IO"
	CodeTrackInference       Code = "TRACK_INFERENCE"
	CodeCoordinateMapMissing Code = "COORDINATE_MAP_MISSING"
	CodeFusionInternal       Code = "FUSION_INTERNAL"
)

// Error is a structured pipeline error.
type Error struct {
	Code      Code
	Message   string
	SliceID   string
	Timestamp time.Time
	Cause     error
}

func (e *Error) Error() string {
	switch {
	case e.SliceID != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %s (slice %s, caused by: %v)", e.Code, e.Message, e.SliceID, e.Cause)
	case e.SliceID != "":
		return fmt.Sprintf("%s: %s (slice %s)", e.Code, e.Message, e.SliceID)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewSliceIOError reports unreadable or zero-size input. Fatal; no partial run.
func NewSliceIOError(message string, cause error) *Error {
	return &Error{Code: CodeSliceIO, Message: message, Timestamp: time.Now(), Cause: cause}
}

// NewTrackInferenceError reports a per-slice track failure. Non-fatal; the
// slice contributes empty results and is flagged in statistics.
func NewTrackInferenceError(sliceID, track string, cause error) *Error {
	return &Error{
		Code:      CodeTrackInference,
		Message:   fmt.Sprintf("%s track failed", track),
		SliceID:   sliceID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// NewCoordinateMapMissingError reports a slice reference with no coordinate
// map entry after rebuild was attempted. Fatal for the batch.
func NewCoordinateMapMissingError(sliceID string) *Error {
	return &Error{
		Code:      CodeCoordinateMapMissing,
		Message:   "no coordinate map entry and no slice metadata to rebuild from",
		SliceID:   sliceID,
		Timestamp: time.Now(),
	}
}

// NewFusionInternalError reports a fusion invariant violation. Fatal for the batch.
func NewFusionInternalError(message string, cause error) *Error {
	return &Error{Code: CodeFusionInternal, Message: message, Timestamp: time.Now(), Cause: cause}
}

// CodeOf extracts the error code, or "" for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsFatal reports whether an error must abort the batch rather than be
// absorbed into per-slice statistics.
func IsFatal(err error) bool {
	switch CodeOf(err) {
	case CodeSliceIO, CodeCoordinateMapMissing, CodeFusionInternal:
		return true
	}
	return false
}
