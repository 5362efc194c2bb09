// Package reward содержит журнал выданных наград.
package reward

import (
	"context"
	"time"
)

// Source - откуда пришла награда.
type Source string

const (
	SourceCard        Source = "card"
	SourceMission     Source = "mission"
	SourceRoadmapStep Source = "roadmap_step"
	SourceManual      Source = "manual"
	SourcePurchase    Source = "purchase"
)

// IsValid проверяет источник.
func (s Source) IsValid() bool {
	switch s {
	case SourceCard, SourceMission, SourceRoadmapStep, SourceManual, SourcePurchase:
		return true
	}
	return false
}

// Entry - одна запись журнала. Для покупок Gold отрицательный.
type Entry struct {
	ID          string    `json:"id"`
	ClassID     string    `json:"class_id"`
	StudentID   string    `json:"student_id"`
	Source      Source    `json:"source"`
	SourceID    string    `json:"source_id,omitempty"`
	Note        string    `json:"note,omitempty"`
	Exp         int       `json:"exp"`
	Gold        int       `json:"gold"`
	LevelBefore int       `json:"level_before"`
	LevelAfter  int       `json:"level_after"`
	Title       string    `json:"title,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository - журнал только на добавление.
type Repository interface {
	// Append добавляет запись; повторная запись с тем же ID игнорируется.
	Append(ctx context.Context, e *Entry) error

	// ListByStudent возвращает последние записи ученика, новые первыми.
	// limit <= 0 означает без ограничения.
	ListByStudent(ctx context.Context, studentID string, limit int) ([]*Entry, error)

	// ListByClass возвращает последние записи класса, новые первыми.
	ListByClass(ctx context.Context, classID string, limit int) ([]*Entry, error)

	ListAll(ctx context.Context) ([]*Entry, error)

	// Reassign переписывает все записи ученика from на ученика to.
	Reassign(ctx context.Context, from, to string) error
}
