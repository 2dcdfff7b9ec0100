package models

// Partition names within a user's mailbox.
const (
	PartitionInbox = "inbox"
	PartitionSent  = "sent"
)

// Mail represents a single mail record as stored in the remote database.
// ID, From, To and CreatedAt are immutable once written; Read only ever
// transitions from false to true.
type Mail struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	HTML      string `json:"html"`
	CreatedAt int64  `json:"createdAt"` // epoch milliseconds
	Read      bool   `json:"read"`
}
