package models

import "time"

// AuditLog trace une action sensible (transition de commande, gestion des coupons).
type AuditLog struct {
	UserID     string    `json:"user_id"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id,omitempty"`
	OldValue   string    `json:"old_value,omitempty"`
	NewValue   string    `json:"new_value,omitempty"`
	Success    bool      `json:"success"`
	ErrorMsg   string    `json:"error_msg,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
