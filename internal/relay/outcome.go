// Package relay implements the question relay endpoint: intake validation,
// a best-effort store write and a best-effort SMS notification, each reported
// with its own status.
package relay

// StoreStatus reports the outcome of the relay's own store write.
type StoreStatus string

const (
	StoreSaved         StoreStatus = "saved"
	StoreFailed        StoreStatus = "failed"
	StoreNotConfigured StoreStatus = "not_configured"
	// StoreClientSaved means the caller wrote the record itself and passed its id.
	StoreClientSaved StoreStatus = "client_saved"
)

// SMSStatus reports the outcome of the carrier notification.
type SMSStatus string

const (
	SMSSent                 SMSStatus = "sent"
	SMSFailed               SMSStatus = "failed"
	SMSNotConfigured        SMSStatus = "not_configured"
	SMSNumbersNotConfigured SMSStatus = "numbers_not_configured"
)

// EmailStatus reports the outcome of the optional e-mail copy.
type EmailStatus string

const (
	EmailSent          EmailStatus = "sent"
	EmailFailed        EmailStatus = "failed"
	EmailNotConfigured EmailStatus = "not_configured"
)

// SMSDetails is the diagnostic detail returned alongside SMSStatus.
type SMSDetails struct {
	MessageSID string `json:"messageSid,omitempty"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
	Error      string `json:"error,omitempty"`
	// Code is the carrier error code, or "unknown".
	Code       any    `json:"code,omitempty"`
	FromNumber string `json:"fromNumber,omitempty"`
	ToNumber   string `json:"toNumber,omitempty"`
}

// Outcome carries the independent results of one relayed question.
type Outcome struct {
	MessageID      string
	QuestionLength int
	Store          StoreStatus
	StoreErr       error
	SMS            SMSStatus
	SMSDetails     SMSDetails
	Email          EmailStatus
	Honeypot       bool
}
