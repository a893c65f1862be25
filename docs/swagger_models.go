package docs

import (
	"time"
)

// This file contains models used by Swagger documentation
// It doesn't affect the actual application logic, just documentation

// RawMessage is a placeholder for json.RawMessage to help Swagger
type RawMessage []byte

// NotificationResponse is used for Swagger documentation
// @Description A single merged notification
type NotificationResponse struct {
	// The channel the notification came from (push or inapp)
	Channel string `json:"channel" example:"push"`

	// The upstream notification ID, unique within its channel
	RemoteID string `json:"remoteId" example:"ntf-8842"`

	// The notification title
	Title string `json:"title" example:"Shift swap approved"`

	// The notification message
	Message string `json:"message" example:"Your Saturday shift was swapped with Dana"`

	// The notification category (shifts, timesheets, leave, expenses, ...)
	Category string `json:"category" example:"shifts"`

	// Presentation priority (low, medium, high)
	Priority string `json:"priority" example:"high"`

	// Opaque payload the client uses to navigate on tap
	NavigationPayload RawMessage `json:"navigationPayload,omitempty"`

	// When the notification was created upstream
	CreatedAt time.Time `json:"createdAt" example:"2026-08-20T09:00:00Z"`

	// Whether the notification has been read
	Read bool `json:"read" example:"false"`
}

// FeedResponse is used for Swagger documentation
// @Description The merged notification feed snapshot
type FeedResponse struct {
	// Notifications sorted newest first
	Notifications []NotificationResponse `json:"notifications"`

	// Unread count over the whole feed, unaffected by any category filter
	UnreadCount int `json:"unreadCount" example:"3"`

	// The category filter applied to Notifications, if any
	Category string `json:"category,omitempty" example:"shifts"`

	// When this snapshot was fetched from the upstream channels
	FetchedAt time.Time `json:"fetchedAt" example:"2026-08-20T09:05:00Z"`
}

// MarkAllReadResponse is used for Swagger documentation
// @Description Result of marking the whole feed read
type MarkAllReadResponse struct {
	// How many notifications were newly marked read
	MarkedReadCount int `json:"marked_read_count" example:"3"`
}

// UnreadCountResponse is used for Swagger documentation
// @Description The current unread counter
type UnreadCountResponse struct {
	// Unread count over the unfiltered feed
	UnreadCount int `json:"unread_count" example:"3"`
}

// ErrorResponse represents an error response
// @Description Error information
type ErrorResponse struct {
	// Error type
	Type string `json:"type" example:"VALIDATION_ERROR"`

	// Error message
	Message string `json:"message" example:"Invalid request parameters"`

	// HTTP status code as a string
	Code string `json:"code" example:"400"`

	// Detailed error information
	Details string `json:"details,omitempty" example:"unknown channel \"sms\""`
}
