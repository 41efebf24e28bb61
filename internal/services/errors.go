package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrExtraction    = errors.New("extraction error")
	ErrDownload      = errors.New("download error")
	ErrStorage       = errors.New("storage error")
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrDownload
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsUserFacing reports whether err should be returned synchronously to the
// caller that submitted the request instead of being recorded on a job.
func IsUserFacing(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrExtraction),
		errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound):
		return true
	default:
		return false
	}
}

// Message strips the marker prefix so the remaining detail can be shown to
// API clients the way the job error column shows it.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, marker := range []error{ErrConfiguration, ErrExtraction, ErrDownload, ErrStorage, ErrValidation, ErrNotFound} {
		if errors.Is(err, marker) {
			msg = strings.TrimPrefix(msg, marker.Error()+": ")
			break
		}
	}
	return msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
