package postgres

import (
	"github.com/classquest/classroom-hub/internal/domain/classroom"
	"github.com/classquest/classroom-hub/internal/domain/mission"
	"github.com/classquest/classroom-hub/internal/domain/praise"
	"github.com/classquest/classroom-hub/internal/domain/reward"
	"github.com/classquest/classroom-hub/internal/domain/roadmap"
	"github.com/classquest/classroom-hub/internal/domain/shop"
	"github.com/classquest/classroom-hub/internal/domain/student"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPSERT STATEMENTS
// ══════════════════════════════════════════════════════════════════════════════
//
// Every aggregate is written as a sequence of statements queued on a
// pgx.Batch. Repositories send one aggregate per batch; hosted sync queues
// many aggregates per batch.

const upsertClassSQL = `
	INSERT INTO classes (id, name, grade, school_year, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		grade = EXCLUDED.grade,
		school_year = EXCLUDED.school_year,
		updated_at = EXCLUDED.updated_at
`

const upsertStudentSQL = `
	INSERT INTO students (
		id, class_id, name, number, honorific, level, exp, points,
		abilities, avatar, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO UPDATE SET
		class_id = EXCLUDED.class_id,
		name = EXCLUDED.name,
		number = EXCLUDED.number,
		honorific = EXCLUDED.honorific,
		level = EXCLUDED.level,
		exp = EXCLUDED.exp,
		points = EXCLUDED.points,
		abilities = EXCLUDED.abilities,
		avatar = EXCLUDED.avatar,
		updated_at = EXCLUDED.updated_at
`

const upsertMissionSQL = `
	INSERT INTO missions (
		id, class_id, name, condition, exp_reward, gold_reward, abilities, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE SET
		class_id = EXCLUDED.class_id,
		name = EXCLUDED.name,
		condition = EXCLUDED.condition,
		exp_reward = EXCLUDED.exp_reward,
		gold_reward = EXCLUDED.gold_reward,
		abilities = EXCLUDED.abilities,
		updated_at = EXCLUDED.updated_at
`

// Achievements pointing at unknown students are skipped, not rejected.
const insertMissionAchievementSQL = `
	INSERT INTO mission_achievements (mission_id, student_id, position)
	SELECT $1::text, $2::text, $3::int WHERE EXISTS (SELECT 1 FROM students WHERE id = $2::text)
	ON CONFLICT DO NOTHING
`

const upsertRoadmapSQL = `
	INSERT INTO roadmaps (
		id, class_id, name, reward_title, icon, abilities, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		class_id = EXCLUDED.class_id,
		name = EXCLUDED.name,
		reward_title = EXCLUDED.reward_title,
		icon = EXCLUDED.icon,
		abilities = EXCLUDED.abilities,
		updated_at = EXCLUDED.updated_at
`

const insertRoadmapStepSQL = `
	INSERT INTO roadmap_steps (id, roadmap_id, position, goal) VALUES ($1, $2, $3, $4)
`

const insertStepAchievementSQL = `
	INSERT INTO roadmap_step_achievements (step_id, student_id, position)
	SELECT $1::text, $2::text, $3::int WHERE EXISTS (SELECT 1 FROM students WHERE id = $2::text)
	ON CONFLICT DO NOTHING
`

const upsertPraiseCardSQL = `
	INSERT INTO praise_cards (
		id, class_id, name, description, abilities, exp_reward, gold_reward, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO UPDATE SET
		class_id = EXCLUDED.class_id,
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		abilities = EXCLUDED.abilities,
		exp_reward = EXCLUDED.exp_reward,
		gold_reward = EXCLUDED.gold_reward,
		updated_at = EXCLUDED.updated_at
`

const upsertShopItemSQL = `
	INSERT INTO point_shop_items (
		id, class_id, name, description, price, slot, image_ref, stock, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		class_id = EXCLUDED.class_id,
		name = EXCLUDED.name,
		description = EXCLUDED.description,
		price = EXCLUDED.price,
		slot = EXCLUDED.slot,
		image_ref = EXCLUDED.image_ref,
		stock = EXCLUDED.stock,
		updated_at = EXCLUDED.updated_at
`

const insertPurchaseSQL = `
	INSERT INTO purchase_history (id, class_id, student_id, item_id, item_name, price, purchased_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO NOTHING
`

const insertRewardSQL = `
	INSERT INTO reward_history (
		id, class_id, student_id, source, source_id, note, exp, gold,
		level_before, level_after, title, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO NOTHING
`

// ─────────────────────────────────────────────────────────────────────────────
// Batch builders
// ─────────────────────────────────────────────────────────────────────────────

func queueClass(b *pgx.Batch, c *classroom.Class) {
	b.Queue(upsertClassSQL, c.ID, c.Name, c.Grade, c.SchoolYear, c.CreatedAt, c.UpdatedAt)
}

func queueStudent(b *pgx.Batch, s *student.Student) {
	b.Queue(upsertStudentSQL,
		s.ID,
		s.ClassID,
		s.Name,
		s.Number,
		s.Honorific,
		s.Level,
		s.Exp,
		s.Points,
		s.Abilities,
		s.Avatar,
		s.CreatedAt,
		s.UpdatedAt,
	)
}

// queueMission replaces the achievement list along with the mission row.
func queueMission(b *pgx.Batch, m *mission.Mission) {
	b.Queue(upsertMissionSQL,
		m.ID, m.ClassID, m.Name, m.Condition, m.ExpReward, m.GoldReward, m.Abilities, m.CreatedAt, m.UpdatedAt)
	b.Queue(`DELETE FROM mission_achievements WHERE mission_id = $1`, m.ID)
	for i, sid := range m.Achievers {
		b.Queue(insertMissionAchievementSQL, m.ID, sid, i)
	}
}

// queueRoadmap replaces steps and step achievements along with the roadmap row.
func queueRoadmap(b *pgx.Batch, r *roadmap.Roadmap) {
	b.Queue(upsertRoadmapSQL,
		r.ID, r.ClassID, r.Name, r.RewardTitle, r.Icon, r.Abilities, r.CreatedAt, r.UpdatedAt)
	b.Queue(`DELETE FROM roadmap_steps WHERE roadmap_id = $1`, r.ID)
	for i, step := range r.Steps {
		b.Queue(insertRoadmapStepSQL, step.ID, r.ID, i, step.Goal)
		for j, sid := range step.Achievers {
			b.Queue(insertStepAchievementSQL, step.ID, sid, j)
		}
	}
}

func queuePraiseCard(b *pgx.Batch, c *praise.Card) {
	b.Queue(upsertPraiseCardSQL,
		c.ID, c.ClassID, c.Name, c.Description, c.Abilities, c.ExpReward, c.GoldReward, c.CreatedAt, c.UpdatedAt)
}

func queueShopItem(b *pgx.Batch, it *shop.Item) {
	b.Queue(upsertShopItemSQL,
		it.ID, it.ClassID, it.Name, it.Description, it.Price, string(it.Slot), it.ImageRef, it.Stock, it.CreatedAt, it.UpdatedAt)
}

func queuePurchase(b *pgx.Batch, p *shop.Purchase) {
	b.Queue(insertPurchaseSQL, p.ID, p.ClassID, p.StudentID, p.ItemID, p.ItemName, p.Price, p.PurchasedAt)
}

func queueReward(b *pgx.Batch, e *reward.Entry) {
	b.Queue(insertRewardSQL,
		e.ID,
		e.ClassID,
		e.StudentID,
		string(e.Source),
		e.SourceID,
		e.Note,
		e.Exp,
		e.Gold,
		e.LevelBefore,
		e.LevelAfter,
		e.Title,
		e.CreatedAt,
	)
}
