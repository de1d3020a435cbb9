package models

import "time"

// Event types
const (
	EventTypeRequestCreated       = "REQUEST_CREATED"
	EventTypeRequestStatusChanged = "REQUEST_STATUS_CHANGED"
	EventTypeRequestFollowedUp    = "REQUEST_FOLLOWED_UP"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// RequestCreatedEvent published when a custodian files a request
type RequestCreatedEvent struct {
	BaseEvent
	RequestID   int64       `json:"request_id"`
	RequesterID int64       `json:"requester_id"`
	BranchID    int64       `json:"branch_id"`
	ItemRef     string      `json:"item_ref"`
	Type        RequestType `json:"request_type"`
	Quantity    int         `json:"quantity"`
}

// RequestStatusChangedEvent published for every accepted transition or revision
type RequestStatusChangedEvent struct {
	BaseEvent
	RequestID   int64         `json:"request_id"`
	RequesterID int64         `json:"requester_id"`
	BranchID    int64         `json:"branch_id"`
	OldStatus   RequestStatus `json:"old_status"`
	NewStatus   RequestStatus `json:"new_status"`
	PerformedBy int64         `json:"performed_by"`
	Notes       string        `json:"notes,omitempty"`
}

// RequestFollowedUpEvent published when a remark is added without a status change
type RequestFollowedUpEvent struct {
	BaseEvent
	RequestID   int64         `json:"request_id"`
	RequesterID int64         `json:"requester_id"`
	BranchID    int64         `json:"branch_id"`
	Status      RequestStatus `json:"status"`
	PerformedBy int64         `json:"performed_by"`
	Notes       string        `json:"notes"`
}
