package payment

import (
	"encoding/json"
	"time"
)

// Status is the local transaction lifecycle state. PENDING transitions at
// most once to SUCCESS or FAILED; both are terminal.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// canTransition is the single place the lifecycle rule lives. Re-applying the
// current status is always allowed (idempotent refresh); leaving a terminal
// status is not.
func canTransition(from, to Status) bool {
	if from == to {
		return true
	}
	return !from.Terminal()
}

// SnapshotKind says which audit snapshot a status update carries.
type SnapshotKind int

const (
	SnapshotCallback SnapshotKind = iota
	SnapshotStatusPoll
)

// Transaction is the record of one payment attempt. UserDetails,
// AppointmentDetails and the gateway snapshots are opaque blobs carried
// through unmodified; the core never interprets their contents.
type Transaction struct {
	TransactionID      string          `json:"transactionId"`
	AppointmentID      string          `json:"appointmentId"`
	AmountMinorUnits   int64           `json:"amount"`
	Status             Status          `json:"status"`
	UserDetails        json.RawMessage `json:"userDetails,omitempty"`
	AppointmentDetails json.RawMessage `json:"appointmentDetails,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`

	// Raw gateway payloads retained for audit.
	CreateResponse  json.RawMessage `json:"phonePeResponse,omitempty"`
	CallbackPayload json.RawMessage `json:"callbackData,omitempty"`
	StatusPayload   json.RawMessage `json:"phonePeStatusData,omitempty"`
}

// Clone returns a copy so store internals never leak to callers.
func (t *Transaction) Clone() *Transaction {
	cp := *t
	return &cp
}
