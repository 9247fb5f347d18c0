package bus

// Notification is a message destined for one chat, produced by background
// mint batches and consumed by the telegram notify loop.
type Notification struct {
	ChatID int64
	Text   string
}
