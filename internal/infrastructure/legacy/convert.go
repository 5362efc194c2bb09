package legacy

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/classquest/classroom-hub/internal/domain/classroom"
	"github.com/classquest/classroom-hub/internal/domain/mission"
	"github.com/classquest/classroom-hub/internal/domain/praise"
	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/roadmap"
	"github.com/classquest/classroom-hub/internal/domain/student"
	"github.com/classquest/classroom-hub/internal/infrastructure/backup"

	"github.com/google/uuid"
)

// ─── Types ───────────────────────────────────────────────────────────────────

// SkippedKey is a key, or one record under a key, that could not be imported.
type SkippedKey struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Report summarizes a conversion.
type Report struct {
	Classes          int                   `json:"classes"`
	Students         int                   `json:"students"`
	Duplicates       int                   `json:"duplicates"`
	Missions         int                   `json:"missions"`
	Roadmaps         int                   `json:"roadmaps"`
	Cards            int                   `json:"cards"`
	LevelCorrections int                   `json:"level_corrections"`
	DroppedAchievers int                   `json:"dropped_achievers"`
	ScopedIDs        int                   `json:"scoped_ids"`
	ClassIDs         []string              `json:"class_ids,omitempty"`
	Merges           []student.MergeReport `json:"merges,omitempty"`
	Skipped          []SkippedKey          `json:"skipped,omitempty"`
	Ignored          []string              `json:"ignored,omitempty"`
}

// Options control a conversion.
type Options struct {
	Rules progression.Rules
	// Now stamps records without a creation time. Defaults to time.Now.
	Now func() time.Time
}

// keyed keeps the storage key a record came from, for error reporting.
type keyed[T any] struct {
	key string
	rec T
}

type converter struct {
	opts   Options
	now    time.Time
	report *Report

	classes  map[string]*classRecord
	students map[string][]keyed[studentRecord]
	missions map[string][]keyed[missionRecord]
	roadmaps map[string][]keyed[roadmapRecord]
	cards    map[string][]keyed[cardRecord]

	// shared holds, per record kind, the legacy ids that appear in more than
	// one class. Those records get a class-scoped id.
	shared map[string]map[string]bool
}

// Convert turns a dump into a snapshot ready for backup.Import. It never
// fails on a single bad key: such keys are listed in Report.Skipped.
func Convert(d Dump, opts Options) (*backup.Snapshot, *Report) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &converter{
		opts:     opts,
		now:      opts.Now().UTC(),
		report:   &Report{},
		classes:  make(map[string]*classRecord),
		students: make(map[string][]keyed[studentRecord]),
		missions: make(map[string][]keyed[missionRecord]),
		roadmaps: make(map[string][]keyed[roadmapRecord]),
		cards:    make(map[string][]keyed[cardRecord]),
	}

	for _, key := range d.Keys() {
		c.collect(key, d[key])
	}
	c.findShared()

	snap := &backup.Snapshot{Version: backup.CurrentVersion, ExportedAt: c.now}
	for _, cid := range c.classIDs() {
		c.buildClass(snap, cid)
	}
	return snap, c.report
}

// ─── Collection ──────────────────────────────────────────────────────────────

func (c *converter) collect(key string, raw json.RawMessage) {
	kind, cid := classifyKey(key)

	var err error
	switch kind {
	case kindClasses:
		var recs []classRecord
		if err = json.Unmarshal(raw, &recs); err == nil {
			for i := range recs {
				if recs[i].ID == "" {
					c.skip(key, fmt.Sprintf("class #%d has no id", i))
					continue
				}
				c.addClass(key, string(recs[i].ID), recs[i])
			}
		}
	case kindClass:
		var rec classRecord
		if err = json.Unmarshal(raw, &rec); err == nil {
			c.addClass(key, cid, rec)
		}
	case kindStudents:
		var recs []studentRecord
		if err = json.Unmarshal(raw, &recs); err == nil {
			c.ensureClass(cid)
			for _, r := range recs {
				c.students[cid] = append(c.students[cid], keyed[studentRecord]{key, r})
			}
		}
	case kindMissions:
		var recs []missionRecord
		if err = json.Unmarshal(raw, &recs); err == nil {
			c.ensureClass(cid)
			for _, r := range recs {
				c.missions[cid] = append(c.missions[cid], keyed[missionRecord]{key, r})
			}
		}
	case kindRoadmaps:
		var recs []roadmapRecord
		if err = json.Unmarshal(raw, &recs); err == nil {
			c.ensureClass(cid)
			for _, r := range recs {
				c.roadmaps[cid] = append(c.roadmaps[cid], keyed[roadmapRecord]{key, r})
			}
		}
	case kindCards:
		var recs []cardRecord
		if err = json.Unmarshal(raw, &recs); err == nil {
			c.ensureClass(cid)
			for _, r := range recs {
				c.cards[cid] = append(c.cards[cid], keyed[cardRecord]{key, r})
			}
		}
	default:
		c.report.Ignored = append(c.report.Ignored, key)
		return
	}

	if err != nil {
		c.skip(key, err.Error())
	}
}

// addClass merges a class record. The first non-empty value of each field wins.
func (c *converter) addClass(key, cid string, rec classRecord) {
	if cid == "" {
		cid = string(rec.ID)
	}
	cur := c.ensureClass(cid)
	if cur.Name == "" {
		cur.Name = strings.TrimSpace(rec.Name)
	}
	if cur.Grade == "" {
		cur.Grade = rec.Grade
	}
	if cur.SchoolYear == "" {
		cur.SchoolYear = rec.SchoolYear
	}
	if cur.CreatedAt.t.IsZero() {
		cur.CreatedAt = rec.CreatedAt
	}
	for _, s := range rec.Students {
		c.students[cid] = append(c.students[cid], keyed[studentRecord]{key, s})
	}
}

func (c *converter) ensureClass(cid string) *classRecord {
	rec, ok := c.classes[cid]
	if !ok {
		rec = &classRecord{ID: flexID(cid)}
		c.classes[cid] = rec
	}
	return rec
}

func (c *converter) classIDs() []string {
	ids := make([]string, 0, len(c.classes))
	for id := range c.classes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// findShared marks legacy ids used by several classes. The old app numbered
// records per class, so "1" in class 1 and "1" in class 2 are different rows.
func (c *converter) findShared() {
	owners := make(map[string]map[string]map[string]bool)
	note := func(kind, cid string, id flexID) {
		if id == "" {
			return
		}
		if owners[kind] == nil {
			owners[kind] = make(map[string]map[string]bool)
		}
		if owners[kind][string(id)] == nil {
			owners[kind][string(id)] = make(map[string]bool)
		}
		owners[kind][string(id)][cid] = true
	}
	for cid, recs := range c.students {
		for _, k := range recs {
			note("student", cid, k.rec.ID)
		}
	}
	for cid, recs := range c.missions {
		for _, k := range recs {
			note("mission", cid, k.rec.ID)
		}
	}
	for cid, recs := range c.roadmaps {
		for _, k := range recs {
			note("roadmap", cid, k.rec.ID)
		}
	}
	for cid, recs := range c.cards {
		for _, k := range recs {
			note("card", cid, k.rec.ID)
		}
	}

	c.shared = make(map[string]map[string]bool)
	for kind, ids := range owners {
		for id, classes := range ids {
			if len(classes) < 2 {
				continue
			}
			if c.shared[kind] == nil {
				c.shared[kind] = make(map[string]bool)
			}
			c.shared[kind][id] = true
			c.report.ScopedIDs += len(classes)
		}
	}
}

// recordID maps a legacy id to its stored id. Ids shared between classes are
// scoped by class; the rest are kept as they were.
func (c *converter) recordID(kind, cid, legacyID string) string {
	if legacyID == "" || !c.shared[kind][legacyID] {
		return legacyID
	}
	return stableID(kind, cid, legacyID)
}

func (c *converter) skip(key, reason string) {
	c.report.Skipped = append(c.report.Skipped, SkippedKey{Key: key, Reason: reason})
}

// ─── Building ────────────────────────────────────────────────────────────────

func (c *converter) buildClass(snap *backup.Snapshot, cid string) {
	rec := c.classes[cid]
	name := rec.Name
	if name == "" {
		name = "Class " + cid
	}
	cls, err := classroom.NewClass(classroom.NewClassParams{
		ID:         cid,
		Name:       name,
		Grade:      rec.Grade,
		SchoolYear: rec.SchoolYear,
	})
	if err != nil {
		c.skip("class_"+cid, err.Error())
		return
	}
	cls.CreatedAt = rec.CreatedAt.or(c.now)
	snap.Classes = append(snap.Classes, cls)
	c.report.Classes++
	c.report.ClassIDs = append(c.report.ClassIDs, cid)

	students := c.buildStudents(cid)
	known := make(map[string]bool, len(students))
	for _, s := range students {
		known[s.ID] = true
	}
	snap.Students = append(snap.Students, students...)
	snap.Missions = append(snap.Missions, c.buildMissions(cid, known)...)
	snap.Roadmaps = append(snap.Roadmaps, c.buildRoadmaps(cid, known)...)
	snap.PraiseCards = append(snap.PraiseCards, c.buildCards(cid)...)
}

func (c *converter) buildStudents(cid string) []*student.Student {
	var raw []*student.Student
	for _, k := range c.students[cid] {
		r := k.rec
		name := []rune(strings.TrimSpace(r.Name))
		if len(name) > maxNameRunes {
			name = name[:maxNameRunes]
		}
		if len(name) == 0 {
			c.skip(k.key, fmt.Sprintf("student %q has no name", r.ID))
			continue
		}
		created := r.CreatedAt.or(c.now)
		s := &student.Student{
			ID:        c.recordID("student", cid, string(r.ID)),
			ClassID:   cid,
			Name:      string(name),
			Number:    max(r.Number.or(0), 0),
			Honorific: firstNonEmpty(r.Honorific, r.Title),
			Level:     r.Level.or(1),
			Exp:       r.Exp.or(0),
			Points:    r.Points.or(r.Gold.or(0)),
			Abilities: r.Abilities.toDomain(),
			CreatedAt: created,
			UpdatedAt: created,
		}
		if r.Avatar != nil {
			s.Avatar = student.Avatar{Body: r.Avatar.Body, Head: r.Avatar.Head, Hat: r.Avatar.Hat, Weapon: r.Avatar.Weapon}
		}
		raw = append(raw, s)
	}

	kept, merges := student.Dedupe(raw)
	for _, m := range merges {
		c.report.Duplicates += len(m.MergedIDs)
	}
	c.report.Merges = append(c.report.Merges, merges...)

	next := student.NextNumber(kept)
	for _, s := range kept {
		if s.Number < 1 {
			s.Number = next
			next++
		}
		if s.ID == "" {
			s.ID = stableID("student", cid, strings.ToLower(s.Name), fmt.Sprint(s.Number))
		}
		if s.Normalize(c.opts.Rules) {
			c.report.LevelCorrections++
		}
	}
	student.SortRoster(kept)
	c.report.Students += len(kept)
	return kept
}

func (c *converter) buildMissions(cid string, known map[string]bool) []*mission.Mission {
	var out []*mission.Mission
	seen := make(map[string]bool)
	for i, k := range c.missions[cid] {
		r := k.rec
		id := c.recordID("mission", cid, string(r.ID))
		if id == "" {
			id = stableID("mission", cid, fmt.Sprint(i), r.Name)
		}
		if seen[id] {
			continue
		}
		m, err := mission.NewMission(mission.NewMissionParams{
			ID:         id,
			ClassID:    cid,
			Name:       r.Name,
			Condition:  firstNonEmpty(r.Condition, r.Description),
			ExpReward:  r.Exp.or(c.opts.Rules.MissionExp),
			GoldReward: r.Gold.or(c.opts.Rules.MissionGold),
			Abilities:  progression.AbilityFlags(r.Abilities),
		})
		if err != nil {
			c.skip(k.key, fmt.Sprintf("mission %q: %v", id, err))
			continue
		}
		m.CreatedAt = r.CreatedAt.or(c.now)
		m.UpdatedAt = m.CreatedAt
		m.Achievers = c.filterKnown(cid, append(append([]string{}, r.Achievers...), r.CompletedBy...), known)
		seen[id] = true
		out = append(out, m)
	}
	c.report.Missions += len(out)
	return out
}

func (c *converter) buildRoadmaps(cid string, known map[string]bool) []*roadmap.Roadmap {
	var out []*roadmap.Roadmap
	seen := make(map[string]bool)
	for i, k := range c.roadmaps[cid] {
		r := k.rec
		id := c.recordID("roadmap", cid, string(r.ID))
		if id == "" {
			id = stableID("roadmap", cid, fmt.Sprint(i), r.Name)
		}
		if seen[id] {
			continue
		}

		goals := make([]string, len(r.Steps))
		for j, step := range r.Steps {
			goals[j] = firstNonEmpty(step.Goal, fmt.Sprintf("Step %d", j+1))
		}
		n := 0
		rm, err := roadmap.NewRoadmap(roadmap.NewRoadmapParams{
			ID:          id,
			ClassID:     cid,
			Name:        firstNonEmpty(r.Name, r.Title),
			Goals:       goals,
			RewardTitle: r.RewardTitle,
			Icon:        r.Icon,
			Abilities:   progression.AbilityFlags(r.Abilities),
			NewStepID: func() string {
				n++
				return fmt.Sprintf("%s-step-%d", id, n)
			},
		})
		if err != nil {
			c.skip(k.key, fmt.Sprintf("roadmap %q: %v", id, err))
			continue
		}
		c.placeOnSteps(rm, cid, r.Steps, known)
		rm.CreatedAt = r.CreatedAt.or(c.now)
		rm.UpdatedAt = rm.CreatedAt
		seen[id] = true
		out = append(out, rm)
	}
	c.report.Roadmaps += len(out)
	return out
}

// placeOnSteps records each student on every step up to the furthest step the
// old board showed them at, so steps stay completed in order.
func (c *converter) placeOnSteps(rm *roadmap.Roadmap, cid string, steps []stepRecord, known map[string]bool) {
	furthest := make(map[string]int)
	var order []string
	for i, step := range steps {
		for _, sid := range c.filterKnown(cid, step.Achievers, known) {
			if _, ok := furthest[sid]; !ok {
				order = append(order, sid)
			}
			furthest[sid] = max(furthest[sid], i)
		}
	}
	for _, sid := range order {
		for i := 0; i <= furthest[sid]; i++ {
			_, _, _ = rm.CompleteStep(sid, i)
		}
	}
}

func (c *converter) buildCards(cid string) []*praise.Card {
	var out []*praise.Card
	seen := make(map[string]bool)
	for i, k := range c.cards[cid] {
		r := k.rec
		id := c.recordID("card", cid, string(r.ID))
		if id == "" {
			id = stableID("card", cid, fmt.Sprint(i), r.Name)
		}
		if seen[id] {
			continue
		}
		card, err := praise.NewCard(praise.NewCardParams{
			ID:          id,
			ClassID:     cid,
			Name:        r.Name,
			Description: r.Description,
			Abilities:   progression.AbilityFlags(r.Abilities),
			ExpReward:   r.Exp.or(c.opts.Rules.PraiseCardExp),
			GoldReward:  r.Gold.or(c.opts.Rules.PraiseCardGold),
		})
		if err != nil {
			c.skip(k.key, fmt.Sprintf("card %q: %v", id, err))
			continue
		}
		card.CreatedAt = r.CreatedAt.or(c.now)
		card.UpdatedAt = card.CreatedAt
		seen[id] = true
		out = append(out, card)
	}
	c.report.Cards += len(out)
	return out
}

// filterKnown maps legacy student ids of class cid to stored ids, then drops
// duplicates and students that are not on the roster.
func (c *converter) filterKnown(cid string, ids []string, known map[string]bool) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, legacyID := range ids {
		id := c.recordID("student", cid, legacyID)
		if seen[id] {
			continue
		}
		seen[id] = true
		if !known[id] {
			c.report.DroppedAchievers++
			continue
		}
		out = append(out, id)
	}
	return out
}

const maxNameRunes = 50

var idNamespace = uuid.MustParse("6f1c2a52-3d0e-4c3b-9a57-2f4b8f0b7e11")

// stableID derives a deterministic id so that importing the same dump twice
// produces the same rows.
func stableID(kind string, parts ...string) string {
	return uuid.NewSHA1(idNamespace, []byte(kind+"|"+strings.Join(parts, "|"))).String()
}
