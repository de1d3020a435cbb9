package models

import (
	"strings"
)

// ItemStatus is the canonical condition of an inventory item
type ItemStatus string

const (
	ItemStatusGood           ItemStatus = "good"
	ItemStatusForRepair      ItemStatus = "for_repair"
	ItemStatusForReplacement ItemStatus = "for_replacement"
	ItemStatusRetired        ItemStatus = "retired"
)

// RequestStatus is the canonical lifecycle state of a purchase request
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
	RequestStatusRevised  RequestStatus = "revised"
)

// ItemStatuses lists the canonical item statuses in display order
var ItemStatuses = []ItemStatus{
	ItemStatusGood,
	ItemStatusForRepair,
	ItemStatusForReplacement,
	ItemStatusRetired,
}

var itemStatusAliases = map[string]ItemStatus{
	"good":            ItemStatusGood,
	"serviceable":     ItemStatusGood,
	"in_stock":        ItemStatusGood,
	"for_repair":      ItemStatusForRepair,
	"repair":          ItemStatusForRepair,
	"for_replacement": ItemStatusForReplacement,
	"replacement":     ItemStatusForReplacement,
	"retired":         ItemStatusRetired,
}

var itemStatusLabels = map[ItemStatus]string{
	ItemStatusGood:           "Good",
	ItemStatusForRepair:      "For Repair",
	ItemStatusForReplacement: "For Replacement",
	ItemStatusRetired:        "Retired",
}

var requestStatuses = map[string]RequestStatus{
	"pending":  RequestStatusPending,
	"approved": RequestStatusApproved,
	"rejected": RequestStatusRejected,
	"revised":  RequestStatusRevised,
}

// statusKey folds case, surrounding space and inner separators so that
// "For Repair", "for-repair" and "FOR_REPAIR" share a key.
func statusKey(raw string) string {
	fields := strings.FieldsFunc(strings.ToLower(strings.TrimSpace(raw)), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '-' || r == '_'
	})
	return strings.Join(fields, "_")
}

// ParseItemStatus maps a free-form status to its canonical value.
// ok is false when the input matches no known alias.
func ParseItemStatus(raw string) (status ItemStatus, ok bool) {
	status, ok = itemStatusAliases[statusKey(raw)]
	return status, ok
}

// NormalizeItemStatus maps a free-form status to its canonical value,
// falling back to good for unknown input.
func NormalizeItemStatus(raw string) ItemStatus {
	if status, ok := ParseItemStatus(raw); ok {
		return status
	}
	return ItemStatusGood
}

// Label renders the human-readable form of s. NormalizeItemStatus(s.Label()) == s
// for every canonical status.
func (s ItemStatus) Label() string {
	if label, ok := itemStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// ParseRequestStatus maps a request status token to its canonical value
func ParseRequestStatus(raw string) (RequestStatus, bool) {
	status, ok := requestStatuses[statusKey(raw)]
	return status, ok
}

// Terminal reports whether no further transition leaves s
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}
