package postgres

import (
	"context"
	"fmt"

	"github.com/classquest/classroom-hub/internal/domain/mission"
	"github.com/classquest/classroom-hub/internal/domain/praise"
	"github.com/classquest/classroom-hub/internal/domain/roadmap"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MISSION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// MissionRepository implements mission.Repository for PostgreSQL.
type MissionRepository struct {
	q    Querier
	lock bool
}

const selectMissionSQL = `
	SELECT id, class_id, name, condition, exp_reward, gold_reward, abilities, created_at, updated_at
	FROM missions
`

// Save upserts the mission and replaces its achievements atomically.
func (r *MissionRepository) Save(ctx context.Context, m *mission.Mission) error {
	b := &pgx.Batch{}
	queueMission(b, m)
	return mapWriteError("mission", "Save", sendAtomic(ctx, r.q, b))
}

// GetByID returns a mission with its achievers.
func (r *MissionRepository) GetByID(ctx context.Context, id string) (*mission.Mission, error) {
	missions, err := r.list(ctx, selectMissionSQL+` WHERE id = $1`+forUpdate(r.lock), id)
	if err != nil {
		return nil, err
	}
	if len(missions) == 0 {
		return nil, mission.ErrMissionNotFound
	}
	return missions[0], nil
}

// ListByClass returns the missions of a class.
func (r *MissionRepository) ListByClass(ctx context.Context, classID string) ([]*mission.Mission, error) {
	return r.list(ctx, selectMissionSQL+` WHERE class_id = $1 ORDER BY created_at, id`, classID)
}

// ListAll returns every mission.
func (r *MissionRepository) ListAll(ctx context.Context) ([]*mission.Mission, error) {
	return r.list(ctx, selectMissionSQL+` ORDER BY created_at, id`)
}

// Delete removes a mission and its achievements.
func (r *MissionRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.q, "missions", id, mission.ErrMissionNotFound)
}

func (r *MissionRepository) list(ctx context.Context, query string, args ...any) ([]*mission.Mission, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query missions: %w", err)
	}

	missions := make([]*mission.Mission, 0)
	byID := make(map[string]*mission.Mission)
	ids := make([]string, 0)
	for rows.Next() {
		m := &mission.Mission{Achievers: []string{}}
		if err := rows.Scan(
			&m.ID, &m.ClassID, &m.Name, &m.Condition,
			&m.ExpReward, &m.GoldReward, &m.Abilities,
			&m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan mission: %w", err)
		}
		missions = append(missions, m)
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return missions, nil
	}

	achRows, err := r.q.Query(ctx, `
		SELECT mission_id, student_id FROM mission_achievements
		WHERE mission_id = ANY($1)
		ORDER BY mission_id, position
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query mission achievements: %w", err)
	}
	defer achRows.Close()

	for achRows.Next() {
		var missionID, studentID string
		if err := achRows.Scan(&missionID, &studentID); err != nil {
			return nil, fmt.Errorf("failed to scan mission achievement: %w", err)
		}
		if m, ok := byID[missionID]; ok {
			m.Achievers = append(m.Achievers, studentID)
		}
	}
	return missions, achRows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// ROADMAP REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// RoadmapRepository implements roadmap.Repository for PostgreSQL.
type RoadmapRepository struct {
	q    Querier
	lock bool
}

const selectRoadmapSQL = `
	SELECT id, class_id, name, reward_title, icon, abilities, created_at, updated_at
	FROM roadmaps
`

// Save upserts the roadmap and replaces its steps atomically.
func (r *RoadmapRepository) Save(ctx context.Context, rm *roadmap.Roadmap) error {
	b := &pgx.Batch{}
	queueRoadmap(b, rm)
	return mapWriteError("roadmap", "Save", sendAtomic(ctx, r.q, b))
}

// GetByID returns a roadmap with steps and achievers.
func (r *RoadmapRepository) GetByID(ctx context.Context, id string) (*roadmap.Roadmap, error) {
	roadmaps, err := r.list(ctx, selectRoadmapSQL+` WHERE id = $1`+forUpdate(r.lock), id)
	if err != nil {
		return nil, err
	}
	if len(roadmaps) == 0 {
		return nil, roadmap.ErrRoadmapNotFound
	}
	return roadmaps[0], nil
}

// ListByClass returns the roadmaps of a class.
func (r *RoadmapRepository) ListByClass(ctx context.Context, classID string) ([]*roadmap.Roadmap, error) {
	return r.list(ctx, selectRoadmapSQL+` WHERE class_id = $1 ORDER BY created_at, id`, classID)
}

// ListAll returns every roadmap.
func (r *RoadmapRepository) ListAll(ctx context.Context) ([]*roadmap.Roadmap, error) {
	return r.list(ctx, selectRoadmapSQL+` ORDER BY created_at, id`)
}

// Delete removes a roadmap; steps and achievements cascade.
func (r *RoadmapRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.q, "roadmaps", id, roadmap.ErrRoadmapNotFound)
}

func (r *RoadmapRepository) list(ctx context.Context, query string, args ...any) ([]*roadmap.Roadmap, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query roadmaps: %w", err)
	}

	roadmaps := make([]*roadmap.Roadmap, 0)
	byID := make(map[string]*roadmap.Roadmap)
	ids := make([]string, 0)
	for rows.Next() {
		rm := &roadmap.Roadmap{Steps: []roadmap.Step{}}
		if err := rows.Scan(
			&rm.ID, &rm.ClassID, &rm.Name, &rm.RewardTitle, &rm.Icon,
			&rm.Abilities, &rm.CreatedAt, &rm.UpdatedAt,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan roadmap: %w", err)
		}
		roadmaps = append(roadmaps, rm)
		byID[rm.ID] = rm
		ids = append(ids, rm.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return roadmaps, nil
	}

	// One query for steps and their achievers; steps without achievers come
	// back with a NULL student id.
	stepRows, err := r.q.Query(ctx, `
		SELECT s.roadmap_id, s.id, s.goal, a.student_id
		FROM roadmap_steps s
		LEFT JOIN roadmap_step_achievements a ON a.step_id = s.id
		WHERE s.roadmap_id = ANY($1)
		ORDER BY s.roadmap_id, s.position, a.position
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query roadmap steps: %w", err)
	}
	defer stepRows.Close()

	for stepRows.Next() {
		var roadmapID, stepID, goal string
		var studentID *string
		if err := stepRows.Scan(&roadmapID, &stepID, &goal, &studentID); err != nil {
			return nil, fmt.Errorf("failed to scan roadmap step: %w", err)
		}
		rm, ok := byID[roadmapID]
		if !ok {
			continue
		}
		n := len(rm.Steps)
		if n == 0 || rm.Steps[n-1].ID != stepID {
			rm.Steps = append(rm.Steps, roadmap.Step{ID: stepID, Goal: goal, Achievers: []string{}})
			n++
		}
		if studentID != nil {
			rm.Steps[n-1].Achievers = append(rm.Steps[n-1].Achievers, *studentID)
		}
	}
	return roadmaps, stepRows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// PRAISE CARD REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// PraiseCardRepository implements praise.Repository for PostgreSQL.
type PraiseCardRepository struct {
	q Querier
}

const selectPraiseCardSQL = `
	SELECT id, class_id, name, description, abilities, exp_reward, gold_reward, created_at, updated_at
	FROM praise_cards
`

// Save creates or updates a card.
func (r *PraiseCardRepository) Save(ctx context.Context, c *praise.Card) error {
	b := &pgx.Batch{}
	queuePraiseCard(b, c)
	return mapWriteError("praise", "Save", sendBatch(ctx, r.q, b))
}

// GetByID returns a card by ID.
func (r *PraiseCardRepository) GetByID(ctx context.Context, id string) (*praise.Card, error) {
	cards, err := r.list(ctx, selectPraiseCardSQL+` WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, praise.ErrCardNotFound
	}
	return cards[0], nil
}

// ListByClass returns the cards of a class.
func (r *PraiseCardRepository) ListByClass(ctx context.Context, classID string) ([]*praise.Card, error) {
	return r.list(ctx, selectPraiseCardSQL+` WHERE class_id = $1 ORDER BY created_at, id`, classID)
}

// ListAll returns every card.
func (r *PraiseCardRepository) ListAll(ctx context.Context) ([]*praise.Card, error) {
	return r.list(ctx, selectPraiseCardSQL+` ORDER BY created_at, id`)
}

// Delete removes a card.
func (r *PraiseCardRepository) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.q, "praise_cards", id, praise.ErrCardNotFound)
}

func (r *PraiseCardRepository) list(ctx context.Context, query string, args ...any) ([]*praise.Card, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query praise cards: %w", err)
	}
	defer rows.Close()

	cards := make([]*praise.Card, 0)
	for rows.Next() {
		var c praise.Card
		if err := rows.Scan(
			&c.ID, &c.ClassID, &c.Name, &c.Description, &c.Abilities,
			&c.ExpReward, &c.GoldReward, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan praise card: %w", err)
		}
		cards = append(cards, &c)
	}
	return cards, rows.Err()
}
