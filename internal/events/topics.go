package events

import (
	"encoding/json"
	"time"
)

// Topic names one kind of state change.
type Topic string

const (
	ProfileCreated    Topic = "profile:created"
	ProfileUpdated    Topic = "profile:updated"
	ProfileDeleted    Topic = "profile:deleted"
	SubmissionCreated Topic = "submission:created"
	SubmissionUpdated Topic = "submission:updated"
	SubmissionDeleted Topic = "submission:deleted"
	RiskCreated       Topic = "risk:created"
	RiskUpdated       Topic = "risk:updated"
	RiskDeleted       Topic = "risk:deleted"
	NotificationNew   Topic = "notification:new"
)

var allTopics = []Topic{
	ProfileCreated, ProfileUpdated, ProfileDeleted,
	SubmissionCreated, SubmissionUpdated, SubmissionDeleted,
	RiskCreated, RiskUpdated, RiskDeleted,
	NotificationNew,
}

// AllTopics returns every topic a push connection subscribes to.
func AllTopics() []Topic {
	return append([]Topic(nil), allTopics...)
}

// Known reports whether t is one of the declared topics.
func (t Topic) Known() bool {
	for _, k := range allTopics {
		if k == t {
			return true
		}
	}
	return false
}

// Event is one emission. Seq is assigned by the bus that dispatched it and is
// strictly increasing per process. Origin names the instance that first emitted it.
type Event struct {
	Topic   Topic           `json:"topic"`
	Seq     uint64          `json:"seq"`
	At      time.Time       `json:"at"`
	Origin  string          `json:"origin,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Tombstone is the payload of every *:deleted topic.
type Tombstone struct {
	ID string `json:"id"`
}
