package postgres

import (
	"context"
	"fmt"

	"github.com/classquest/classroom-hub/internal/domain/classroom"
	"github.com/classquest/classroom-hub/internal/domain/student"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// CLASS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ClassRepository implements classroom.Repository for PostgreSQL.
type ClassRepository struct {
	q Querier
}

const selectClassSQL = `SELECT id, name, grade, school_year, created_at, updated_at FROM classes`

// Save creates or updates a class.
func (r *ClassRepository) Save(ctx context.Context, c *classroom.Class) error {
	b := &pgx.Batch{}
	queueClass(b, c)
	return mapWriteError("class", "Save", sendBatch(ctx, r.q, b))
}

// GetByID returns a class by ID.
func (r *ClassRepository) GetByID(ctx context.Context, id string) (*classroom.Class, error) {
	row := r.q.QueryRow(ctx, selectClassSQL+` WHERE id = $1`, id)
	c, err := scanClass(row)
	if IsNoRows(err) {
		return nil, classroom.ErrClassNotFound
	}
	return c, err
}

// List returns all classes ordered by name.
func (r *ClassRepository) List(ctx context.Context) ([]*classroom.Class, error) {
	rows, err := r.q.Query(ctx, selectClassSQL+` ORDER BY lower(name), id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query classes: %w", err)
	}
	defer rows.Close()

	classes := make([]*classroom.Class, 0)
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

// Delete removes a class; foreign keys cascade to everything it owns.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.q, "classes", id, classroom.ErrClassNotFound)
}

func scanClass(row pgx.Row) (*classroom.Class, error) {
	var c classroom.Class
	if err := row.Scan(&c.ID, &c.Name, &c.Grade, &c.SchoolYear, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan class: %w", err)
	}
	return &c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository for PostgreSQL.
// Inside a transaction GetByID locks the row until commit, so two grants to
// one student are applied one after the other.
type StudentRepository struct {
	q    Querier
	lock bool
}

const selectStudentSQL = `
	SELECT id, class_id, name, number, honorific, level, exp, points,
	       abilities, avatar, created_at, updated_at
	FROM students
`

// Save creates or updates a student.
func (r *StudentRepository) Save(ctx context.Context, s *student.Student) error {
	b := &pgx.Batch{}
	queueStudent(b, s)
	return mapWriteError("student", "Save", sendBatch(ctx, r.q, b))
}

// GetByID returns a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*student.Student, error) {
	row := r.q.QueryRow(ctx, selectStudentSQL+` WHERE id = $1`+forUpdate(r.lock), id)
	s, err := scanStudent(row)
	if IsNoRows(err) {
		return nil, student.ErrStudentNotFound
	}
	return s, err
}

// ListByClass returns the roster of a class.
func (r *StudentRepository) ListByClass(ctx context.Context, classID string) ([]*student.Student, error) {
	students, err := r.list(ctx, selectStudentSQL+` WHERE class_id = $1`, classID)
	if err != nil {
		return nil, err
	}
	student.SortRoster(students)
	return students, nil
}

// ListAll returns every student.
func (r *StudentRepository) ListAll(ctx context.Context) ([]*student.Student, error) {
	return r.list(ctx, selectStudentSQL+` ORDER BY class_id, created_at, id`)
}

// Delete removes a student; achievements and history cascade.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.q, "students", id, student.ErrStudentNotFound)
}

func (r *StudentRepository) list(ctx context.Context, query string, args ...any) ([]*student.Student, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	students := make([]*student.Student, 0)
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

func scanStudent(row pgx.Row) (*student.Student, error) {
	var s student.Student
	err := row.Scan(
		&s.ID,
		&s.ClassID,
		&s.Name,
		&s.Number,
		&s.Honorific,
		&s.Level,
		&s.Exp,
		&s.Points,
		&s.Abilities,
		&s.Avatar,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan student: %w", err)
	}
	return &s, nil
}
