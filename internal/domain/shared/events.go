package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// Reward events
	EventRewardGranted EventType = "reward.granted"
	EventLevelUp       EventType = "student.level_up"
	EventTitleAwarded  EventType = "student.title_awarded"

	// Roster events
	EventStudentUpdated EventType = "student.updated"
	EventStudentDeleted EventType = "student.deleted"
	EventClassDeleted   EventType = "class.deleted"

	// Shop events
	EventItemPurchased EventType = "shop.item_purchased"

	// System events
	EventHostedSyncCompleted EventType = "system.hosted_sync_completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Reward Events
// ═══════════════════════════════════════════════════════════════════════════

// RewardGrantedEvent is emitted after a reward has been committed for a student.
// It carries enough of the student's state to refresh a leaderboard entry
// without another read.
type RewardGrantedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	ClassID   string `json:"class_id"`
	Name      string `json:"name"`
	Number    int    `json:"number"`
	Honorific string `json:"honorific,omitempty"`
	Source    string `json:"source"`
	SourceID  string `json:"source_id,omitempty"`
	Exp       int    `json:"exp"`
	Gold      int    `json:"gold"`
	TotalExp  int    `json:"total_exp"`
	Level     int    `json:"level"`
}

// Payload implements Event interface.
func (e RewardGrantedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"class_id":   e.ClassID,
		"name":       e.Name,
		"number":     e.Number,
		"honorific":  e.Honorific,
		"source":     e.Source,
		"source_id":  e.SourceID,
		"exp":        e.Exp,
		"gold":       e.Gold,
		"total_exp":  e.TotalExp,
		"level":      e.Level,
	}
}

// NewRewardGrantedEvent creates a new RewardGrantedEvent.
func NewRewardGrantedEvent(e RewardGrantedEvent) RewardGrantedEvent {
	e.BaseEvent = NewBaseEvent(EventRewardGranted, e.StudentID)
	return e
}

// LevelUpEvent is emitted when a reward moves a student to a higher level.
type LevelUpEvent struct {
	BaseEvent
	StudentID   string `json:"student_id"`
	ClassID     string `json:"class_id"`
	OldLevel    int    `json:"old_level"`
	NewLevel    int    `json:"new_level"`
	GoldAwarded int    `json:"gold_awarded"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":   e.StudentID,
		"class_id":     e.ClassID,
		"old_level":    e.OldLevel,
		"new_level":    e.NewLevel,
		"gold_awarded": e.GoldAwarded,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(studentID, classID string, oldLevel, newLevel, gold int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent:   NewBaseEvent(EventLevelUp, studentID),
		StudentID:   studentID,
		ClassID:     classID,
		OldLevel:    oldLevel,
		NewLevel:    newLevel,
		GoldAwarded: gold,
	}
}

// TitleAwardedEvent is emitted when a student receives an honorific.
type TitleAwardedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	ClassID   string `json:"class_id"`
	Title     string `json:"title"`
	SourceID  string `json:"source_id,omitempty"`
}

// Payload implements Event interface.
func (e TitleAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"class_id":   e.ClassID,
		"title":      e.Title,
		"source_id":  e.SourceID,
	}
}

// NewTitleAwardedEvent creates a new TitleAwardedEvent.
func NewTitleAwardedEvent(studentID, classID, title, sourceID string) TitleAwardedEvent {
	return TitleAwardedEvent{
		BaseEvent: NewBaseEvent(EventTitleAwarded, studentID),
		StudentID: studentID,
		ClassID:   classID,
		Title:     title,
		SourceID:  sourceID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Roster Events
// ═══════════════════════════════════════════════════════════════════════════

// StudentChangedEvent is emitted when a student is edited or removed.
type StudentChangedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	ClassID   string `json:"class_id"`
}

// Payload implements Event interface.
func (e StudentChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"class_id":   e.ClassID,
	}
}

// NewStudentUpdatedEvent creates a student.updated event.
func NewStudentUpdatedEvent(studentID, classID string) StudentChangedEvent {
	return StudentChangedEvent{
		BaseEvent: NewBaseEvent(EventStudentUpdated, studentID),
		StudentID: studentID,
		ClassID:   classID,
	}
}

// NewStudentDeletedEvent creates a student.deleted event.
func NewStudentDeletedEvent(studentID, classID string) StudentChangedEvent {
	return StudentChangedEvent{
		BaseEvent: NewBaseEvent(EventStudentDeleted, studentID),
		StudentID: studentID,
		ClassID:   classID,
	}
}

// ClassDeletedEvent is emitted after a class and everything it owns are removed.
type ClassDeletedEvent struct {
	BaseEvent
	ClassID string `json:"class_id"`
}

// Payload implements Event interface.
func (e ClassDeletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"class_id": e.ClassID}
}

// NewClassDeletedEvent creates a new ClassDeletedEvent.
func NewClassDeletedEvent(classID string) ClassDeletedEvent {
	return ClassDeletedEvent{
		BaseEvent: NewBaseEvent(EventClassDeleted, classID),
		ClassID:   classID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Shop Events
// ═══════════════════════════════════════════════════════════════════════════

// ItemPurchasedEvent is emitted when a student spends points in the shop.
type ItemPurchasedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	ClassID   string `json:"class_id"`
	ItemID    string `json:"item_id"`
	Price     int    `json:"price"`
}

// Payload implements Event interface.
func (e ItemPurchasedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"class_id":   e.ClassID,
		"item_id":    e.ItemID,
		"price":      e.Price,
	}
}

// NewItemPurchasedEvent creates a new ItemPurchasedEvent.
func NewItemPurchasedEvent(studentID, classID, itemID string, price int) ItemPurchasedEvent {
	return ItemPurchasedEvent{
		BaseEvent: NewBaseEvent(EventItemPurchased, studentID),
		StudentID: studentID,
		ClassID:   classID,
		ItemID:    itemID,
		Price:     price,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// HostedSyncCompletedEvent is emitted after the local store was copied to the hosted database.
type HostedSyncCompletedEvent struct {
	BaseEvent
	Rows     int           `json:"rows"`
	Duration time.Duration `json:"duration"`
}

// Payload implements Event interface.
func (e HostedSyncCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"rows":     e.Rows,
		"duration": e.Duration.String(),
	}
}

// NewHostedSyncCompletedEvent creates a new HostedSyncCompletedEvent.
func NewHostedSyncCompletedEvent(rows int, d time.Duration) HostedSyncCompletedEvent {
	return HostedSyncCompletedEvent{
		BaseEvent: NewBaseEvent(EventHostedSyncCompleted, "hosted"),
		Rows:      rows,
		Duration:  d,
	}
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(Event) error { return nil }
