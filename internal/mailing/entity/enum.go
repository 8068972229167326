package entity

type DeliveryState int16

const (
	DeliveryStateUnknown DeliveryState = 0
	DeliveryStatePending DeliveryState = 1
	DeliveryStateSent    DeliveryState = 2
	DeliveryStateFailed  DeliveryState = 3
)

func (s DeliveryState) String() string {
	switch s {
	case DeliveryStatePending:
		return "pending"
	case DeliveryStateSent:
		return "sent"
	case DeliveryStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type BodyKind int16

const (
	BodyKindUnknown BodyKind = 0
	BodyKindPlain   BodyKind = 1
	BodyKindMarkup  BodyKind = 2
)

func (k BodyKind) String() string {
	switch k {
	case BodyKindPlain:
		return "plain"
	case BodyKindMarkup:
		return "markup"
	default:
		return "unknown"
	}
}

// Outcome is the result of one send attempt for a recipient.
type Outcome string

const (
	OutcomeAlreadySent    Outcome = "already_sent"
	OutcomeQuotaExhausted Outcome = "quota_exhausted"
	OutcomeSent           Outcome = "sent"
	OutcomeFailed         Outcome = "failed"
)

func (o Outcome) String() string {
	return string(o)
}
