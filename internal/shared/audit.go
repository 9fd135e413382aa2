package shared

import "time"

// AuditEntry is appended to a document's audit log on every mutation.
type AuditEntry struct {
	Action  string         `json:"action"`
	UserID  int64          `json:"userId"`
	At      time.Time      `json:"at"`
	Changes map[string]any `json:"changes,omitempty"`
}

// NewAuditEntry stamps an entry for the caller.
func NewAuditEntry(actor Identity, action string, at time.Time, changes map[string]any) AuditEntry {
	return AuditEntry{Action: action, UserID: actor.UserID, At: at.UTC(), Changes: changes}
}
