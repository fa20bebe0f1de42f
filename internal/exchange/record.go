// Package exchange holds the Exchange Record (one visitor question plus its
// optional reply) and the stores that persist it.
package exchange

import (
	"strings"
	"time"
)

const (
	// MaxQuestionLength caps questions in UTF-16 code units.
	MaxQuestionLength = 100

	// StandaloneName and StandaloneQuestion label replies that arrived with no pending question.
	StandaloneName     = "Stuart (SMS Reply)"
	StandaloneQuestion = "Direct SMS Reply"
)

// Record is one exchange between a visitor and the responder.
type Record struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Question       string     `json:"question"`
	Reply          string     `json:"reply,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
	IsFromStuart   bool       `json:"isFromStuart"`
	Read           bool       `json:"read"`
	QuestionLength int        `json:"questionLength,omitempty"`
	ReplyTimestamp *time.Time `json:"replyTimestamp,omitempty"`
	ReplySID       string     `json:"replySid,omitempty"`
	Standalone     bool       `json:"standalone,omitempty"`
}

// Pending reports whether the record is an unanswered visitor question.
func (r Record) Pending() bool {
	return !r.IsFromStuart && !r.Read
}

// Answered reports whether a reply has been attached.
func (r Record) Answered() bool {
	return r.Reply != ""
}

// Question is an intake submission.
type Question struct {
	Name     string
	Question string
}

// Validate enforces required fields and the length cap.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Name) == "" || strings.TrimSpace(q.Question) == "" {
		return ErrMissingFields
	}
	if n := QuestionLength(q.Question); n > MaxQuestionLength {
		return &LengthError{Current: n, Max: MaxQuestionLength}
	}
	return nil
}

// Answer is a reply attached to a record.
type Answer struct {
	Body string
	// SID is the carrier message id; empty for replies written from the admin panel.
	SID string
	At  time.Time
}

// QuestionLength counts UTF-16 code units, the unit browsers use for string length.
func QuestionLength(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// TruncateUnits shortens s to at most limit UTF-16 code units and appends
// suffix when anything was cut. Surrogate pairs are never split.
func TruncateUnits(s string, limit int, suffix string) string {
	if QuestionLength(s) <= limit {
		return s
	}
	units := 0
	for i, r := range s {
		w := 1
		if r >= 0x10000 {
			w = 2
		}
		if units+w > limit {
			return s[:i] + suffix
		}
		units += w
	}
	return s
}
