package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role of the user a session is attached for.
type Role string

const (
	RolePatient    Role = "patient"
	RoleSpecialist Role = "specialist"
)

// ParseRole normalizes a role string.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "patient":
		return RolePatient, nil
	case "specialist":
		return RoleSpecialist, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// EntityType identifies which stream a notification came from.
type EntityType string

const (
	TypeAppointment     EntityType = "appointment"
	TypeReferral        EntityType = "referral"
	TypeProfessionalFee EntityType = "professional_fee"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Entity statuses the synthesizer reacts to. Anything else yields no
// notification (unknown statuses are ignored, never an error).
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
)

// Notification is the canonical entity persisted in the per-user cache.
//
// Timestamp is the observation time (when the feed saw the change), not the
// underlying entity's event time.
type Notification struct {
	ID        string     `json:"id"`
	Type      EntityType `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Timestamp int64      `json:"timestamp"` // epoch millis
	Read      bool       `json:"read"`
	Priority  Priority   `json:"priority"`
	RelatedID string     `json:"relatedId"`
	Status    string     `json:"status"`
}

// NotificationID derives the canonical id for a transition.
//
// The id is a pure function of (type, relatedId, status), with no random
// suffix, so re-observing the same transition produces the same id and the
// merge engine's replace-by-id path stays effective.
func NotificationID(t EntityType, relatedID, status string) string {
	return string(t) + "-" + relatedID + "-" + status
}

// cacheKey is the storage key for a user's notification list.
func cacheKey(userID string) string { return "notifications_" + userID }

func encodeList(list []Notification) (string, error) {
	if list == nil {
		list = []Notification{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeList(raw string) ([]Notification, error) {
	var list []Notification
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, err
	}
	return list, nil
}

func nowMillis() int64 { return time.Now().UnixMilli() }
