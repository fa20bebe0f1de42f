package exchange

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingFields is returned when name or question is blank.
	ErrMissingFields = errors.New("name and question are required")

	// ErrQuestionTooLong is matched by LengthError via errors.Is.
	ErrQuestionTooLong = errors.New("question too long")

	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("exchange record not found")

	// ErrAlreadyAnswered is returned by Answer when the record already carries a reply.
	ErrAlreadyAnswered = errors.New("exchange record already answered")

	// ErrPermissionDenied marks store rejections that usually clear once
	// security rules or grants finish propagating.
	ErrPermissionDenied = errors.New("exchange store permission denied")
)

// LengthError reports a question over the cap.
type LengthError struct {
	Current int
	Max     int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("question must be %d characters or less, got %d", e.Max, e.Current)
}

// Is lets errors.Is(err, ErrQuestionTooLong) match.
func (e *LengthError) Is(target error) bool {
	return target == ErrQuestionTooLong
}
