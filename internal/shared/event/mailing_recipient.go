package event

const MailingRecipientDispatchRequestedDestination string = "mailing_recipient_dispatch_requested"
const MailingRecipientDispatchRequestedConsumerSend string = "mailing_recipient_dispatch_requested_send"

type MailingRecipientMessage struct {
	RecipientID int64 `json:"recipient_id"`
}
