package entity

import (
	"time"
	"unicode/utf8"
)

// Column bounds, in characters.
const (
	MaxLastErrorLen = 500
	MaxNameLen      = 255
	MaxSubjectLen   = 255
	MaxEmailLen     = 320
)

// Body is the message content with its kind decided once at ingestion.
type Body struct {
	Kind    BodyKind
	Content string
}

func PlainBody(s string) Body  { return Body{Kind: BodyKindPlain, Content: s} }
func MarkupBody(s string) Body { return Body{Kind: BodyKindMarkup, Content: s} }

type Recipient struct {
	ID      int64
	BatchID int64
	// OwnerID is the owner of the batch, joined on load.
	OwnerID       int64
	Name          string
	Email         string
	Subject       string
	Body          Body
	Cc            string
	Bcc           string
	Attachments   string
	State         DeliveryState
	Attempts      int32
	LastAttemptAt *time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r *Recipient) IsSent() bool {
	return r.State == DeliveryStateSent
}

type CreateRecipient struct {
	ID          int64
	BatchID     int64
	Name        string
	Email       string
	Subject     string
	Body        Body
	Cc          string
	Bcc         string
	Attachments string
}

// RecordAttempt is the persisted result of one transmit.
//
// The store applies it as attempts+1 and never moves a Sent recipient back.
type RecordAttempt struct {
	RecipientID int64
	State       DeliveryState
	AttemptedAt time.Time
	LastError   string
}

// RawRow is one spreadsheet row before normalization.
type RawRow struct {
	Name        string
	Email       string
	Subject     string
	Body        Body
	Attachments string
}

// TruncateError cuts s to MaxLastErrorLen characters.
func TruncateError(s string) string {
	return Truncate(s, MaxLastErrorLen)
}

// Truncate cuts s to n characters without splitting a rune.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
