package relay

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/wolfman30/askstuart/internal/exchange"
)

// SMSQuestionLimit caps the question excerpt embedded in the SMS body.
const SMSQuestionLimit = 120

// en-AU short date and time, e.g. "14/07/2025, 9:05:03 am".
const smsTimeLayout = "02/01/2006, 3:04:05 pm"

// FormatNotification renders the SMS sent to the responder for a new question.
func FormatNotification(name, question, messageID string, at time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	excerpt := exchange.TruncateUnits(question, SMSQuestionLimit, "...")
	return fmt.Sprintf(`🏛️ New Ask Stuart Question

From: %s
Question: %s

Message ID: %s
Time: %s

📱 Reply via admin panel for instant chat response`, name, excerpt, messageID, at.In(loc).Format(smsTimeLayout))
}
