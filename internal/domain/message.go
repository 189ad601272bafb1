package domain

// RawMessage is one inbound provider notification as forwarded by the mobile
// client. It is transient: never persisted as-is, though the body is embedded
// in transaction metadata for audit once a ledger entry is created.
type RawMessage struct {
	Body   string `json:"body"`
	Origin string `json:"origin"`
}
