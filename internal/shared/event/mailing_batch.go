package event

const MailingBatchUploadedDestination string = "mailing_batch_uploaded"
const MailingBatchUploadedConsumerIngest string = "mailing_batch_uploaded_ingest"

const MailingBatchDispatchRequestedDestination string = "mailing_batch_dispatch_requested"
const MailingBatchDispatchRequestedConsumerDispatch string = "mailing_batch_dispatch_requested_dispatch"

const MailingBatchDeleteRequestedDestination string = "mailing_batch_delete_requested"
const MailingBatchDeleteRequestedConsumerDelete string = "mailing_batch_delete_requested_delete"

// MailingBatchMessage is the payload of every batch scoped mailing event.
// OwnerID is optional for dispatch requests and required for deletes.
type MailingBatchMessage struct {
	BatchID int64 `json:"batch_id"`
	OwnerID int64 `json:"owner_id"`
}
