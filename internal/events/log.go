package events

import (
	"sync"
	"time"
)

// TypeIssueEvent is the hub event type published for every appended Record.
const TypeIssueEvent = "issue.event"

// Record is one handled webhook delivery as exposed by GET /events.
type Record struct {
	ID            string    `json:"id"`
	DeliveryID    string    `json:"delivery_id"`
	Event         string    `json:"event"`
	Action        string    `json:"action,omitempty"`
	IssueNumber   int       `json:"issue_number,omitempty"`
	CommentID     int64     `json:"comment_id,omitempty"`
	Repository    string    `json:"repository,omitempty"`
	Sender        string    `json:"sender,omitempty"`
	PayloadDigest string    `json:"payload_digest"`
	ReceivedAt    time.Time `json:"received_at"`
}

// Log keeps the most recent records in a bounded ring and mirrors each one
// onto the hub.
type Log struct {
	hub *Hub

	mu      sync.Mutex
	records *ring[Record]
}

// NewLog returns a log holding at most capacity records. hub may be nil.
func NewLog(capacity int, hub *Hub) *Log {
	if capacity <= 0 {
		capacity = 256
	}
	return &Log{hub: hub, records: newRing[Record](capacity)}
}

func (l *Log) Append(r Record) {
	l.mu.Lock()
	l.records.push(r)
	l.mu.Unlock()

	if l.hub != nil {
		l.hub.Publish(TypeIssueEvent, r)
	}
}

// Recent returns up to limit of the newest records, oldest-first.
// A non-positive limit returns every buffered record.
func (l *Log) Recent(limit int) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.records.tail(limit)
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.records.len()
}

func (l *Log) Cap() int {
	return l.records.cap()
}
