package models

import "time"

// WaitlistEntry records a client waiting for a slot on a given day.
type WaitlistEntry struct {
	ID         string     `json:"id"`
	SalonID    string     `json:"salon_id"`
	ServiceID  string     `json:"service_id"`
	ClientID   string     `json:"client_id"`
	StaffID    string     `json:"staff_id,omitempty"`
	Date       string     `json:"preferred_date"`
	Status     string     `json:"status"`
	NotifiedAt *time.Time `json:"notified_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
