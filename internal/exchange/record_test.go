package exchange

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionLengthCountsUTF16Units(t *testing.T) {
	assert.Equal(t, 5, QuestionLength("hello"))
	assert.Equal(t, 1, QuestionLength("é"))
	// Astral-plane characters take a surrogate pair.
	assert.Equal(t, 2, QuestionLength("🏛"))
	assert.Equal(t, 4, QuestionLength("a🏛b"))
	assert.Equal(t, 0, QuestionLength(""))
}

func TestQuestionValidate(t *testing.T) {
	tests := []struct {
		name    string
		q       Question
		wantErr error
	}{
		{"ok", Question{Name: "Ann, Smith Law", Question: "How is super split?"}, nil},
		{"missing name", Question{Question: "hi"}, ErrMissingFields},
		{"blank question", Question{Name: "Ann", Question: "   "}, ErrMissingFields},
		{"exactly max", Question{Name: "Ann", Question: strings.Repeat("a", MaxQuestionLength)}, nil},
		{"over max", Question{Name: "Ann", Question: strings.Repeat("a", MaxQuestionLength+1)}, ErrQuestionTooLong},
		{"emoji pushes over max", Question{Name: "Ann", Question: strings.Repeat("a", MaxQuestionLength-1) + "🏛"}, ErrQuestionTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestLengthErrorCarriesCounts(t *testing.T) {
	err := Question{Name: "Ann", Question: strings.Repeat("x", 130)}.Validate()
	var lengthErr *LengthError
	require.True(t, errors.As(err, &lengthErr))
	assert.Equal(t, 130, lengthErr.Current)
	assert.Equal(t, MaxQuestionLength, lengthErr.Max)
	assert.Contains(t, err.Error(), "100")
}

func TestTruncateUnits(t *testing.T) {
	assert.Equal(t, "short", TruncateUnits("short", 10, "..."))
	assert.Equal(t, "abc...", TruncateUnits("abcdef", 3, "..."))
	assert.Equal(t, "abcdef", TruncateUnits("abcdef", 6, "..."))
	// The pair would straddle the limit, so it is dropped whole.
	assert.Equal(t, "ab...", TruncateUnits("ab🏛cd", 3, "..."))
}

func TestRecordState(t *testing.T) {
	r := Record{}
	assert.True(t, r.Pending())
	assert.False(t, r.Answered())

	r.Reply = "Yes"
	r.Read = true
	r.IsFromStuart = true
	assert.False(t, r.Pending())
	assert.True(t, r.Answered())
}
