package events

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// SourceDiaryService is the event source name used on the bus
const SourceDiaryService = "diary.service"

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetEventID() string
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventID     string    `json:"event_id"`
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	UserID      int64     `json:"user_id"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetEventID() string      { return e.EventID }
func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(eventType, aggregateID string, userID int64, timestamp time.Time) BaseEvent {
	return BaseEvent{
		EventID:     uuid.NewString(),
		AggregateID: aggregateID,
		EventType:   eventType,
		UserID:      userID,
		Timestamp:   timestamp,
		Version:     1,
	}
}

func entryAggregate(entryID int64) string {
	return "entry/" + strconv.FormatInt(entryID, 10)
}

func userAggregate(userID int64) string {
	return "user/" + strconv.FormatInt(userID, 10)
}
