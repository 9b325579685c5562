package audit

import (
	"time"
)

// AuditAction is a lifecycle event worth keeping after the dialog closes.
type AuditAction string

const (
	AuditActionSignatureRequested AuditAction = "signature_requested"
	AuditActionRejected           AuditAction = "rejected"
	AuditActionSubmitted          AuditAction = "submitted"
	AuditActionLongPending        AuditAction = "long_pending"
	AuditActionConfirmed          AuditAction = "confirmed"
	AuditActionFailed             AuditAction = "failed"
)

// AuditLog represents a single audit log entry
type AuditLog struct {
	ID        string                 `json:"id"`
	Action    AuditAction            `json:"action"`
	Timestamp time.Time              `json:"timestamp"`
	Token     string                 `json:"token,omitempty"`
	TxHash    string                 `json:"tx_hash,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}
