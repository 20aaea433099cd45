package domain

import "time"

type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
	NotifyWarning NotificationKind = "warning"
	NotifyInfo    NotificationKind = "info"
)

// Notification is a user-facing outcome of a back-office operation.
type Notification struct {
	Kind        NotificationKind `json:"kind"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Resource    string           `json:"resource,omitempty"`
	Action      string           `json:"action,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}
