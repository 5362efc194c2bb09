package student

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Реализации находятся в infrastructure/persistence (sqlite и postgres).
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции хранения учеников.
type Repository interface {
	// Save создаёт или обновляет ученика (upsert по ID).
	Save(ctx context.Context, s *Student) error

	// GetByID возвращает ученика по ID.
	// Возвращает ErrStudentNotFound, если ученик не найден.
	GetByID(ctx context.Context, id string) (*Student, error)

	// ListByClass возвращает учеников класса, отсортированных по номеру и имени.
	ListByClass(ctx context.Context, classID string) ([]*Student, error)

	// ListAll возвращает всех учеников всех классов.
	ListAll(ctx context.Context) ([]*Student, error)

	// Delete удаляет ученика.
	// Возвращает ErrStudentNotFound, если ученик не найден.
	Delete(ctx context.Context, id string) error
}
