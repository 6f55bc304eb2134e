package reconcile

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"qsync/internal/events"
)

// Kind is a synchronized record type. Its value is the topic prefix.
type Kind string

const (
	KindProfile    Kind = "profile"
	KindSubmission Kind = "submission"
	KindRisk       Kind = "risk"
)

// Kinds lists every kind a session tracks.
func Kinds() []Kind {
	return []Kind{KindProfile, KindSubmission, KindRisk}
}

// Path is the collection endpoint for the kind.
func (k Kind) Path() string {
	return "/api/" + string(k) + "s"
}

// Record is one server representation. Only the id and updatedAt are
// interpreted; Body is kept verbatim.
type Record struct {
	ID        string          `json:"id"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Body      json.RawMessage `json:"body"`
}

func recordID(r Record) string         { return r.ID }
func recordVersion(r Record) time.Time { return r.UpdatedAt }

// DecodeRecord extracts the key fields from a server representation.
func DecodeRecord(raw json.RawMessage) (Record, error) {
	var head struct {
		ID        string    `json:"id"`
		UpdatedAt time.Time `json:"updatedAt"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	if head.ID == "" {
		return Record{}, fmt.Errorf("decode record: missing id")
	}
	return Record{ID: head.ID, UpdatedAt: head.UpdatedAt, Body: append(json.RawMessage(nil), raw...)}, nil
}

// op is what an event does to the cache.
type op int

const (
	opIgnore op = iota
	opUpsert
	opDelete
)

// classify maps a topic to the kind it touches and the cache operation.
func classify(topic events.Topic) (Kind, op) {
	prefix, action, ok := strings.Cut(string(topic), ":")
	if !ok {
		return "", opIgnore
	}
	kind := Kind(prefix)
	switch kind {
	case KindProfile, KindSubmission, KindRisk:
	default:
		return "", opIgnore
	}
	switch action {
	case "created", "updated":
		return kind, opUpsert
	case "deleted":
		return kind, opDelete
	}
	return "", opIgnore
}
