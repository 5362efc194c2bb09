package legacy

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/classquest/classroom-hub/internal/domain/progression"
)

// ─── Flexible scalars ────────────────────────────────────────────────────────

// flexID accepts a JSON string or number.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// flexInt accepts a JSON number or a numeric string. Fractions are truncated.
type flexInt struct {
	v   int
	set bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
	}
	x, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	f.v, f.set = int(x), true
	return nil
}

func (f flexInt) or(def int) int {
	if f.set {
		return f.v
	}
	return def
}

// flexTime accepts RFC 3339 strings or Unix milliseconds.
type flexTime struct {
	t time.Time
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			f.t = t.UTC()
		}
		return nil
	}
	ms, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	f.t = time.UnixMilli(int64(ms)).UTC()
	return nil
}

func (f flexTime) or(def time.Time) time.Time {
	if f.t.IsZero() {
		return def
	}
	return f.t
}

// flexFlags accepts {"intelligence": true, ...} or ["intelligence", ...].
type flexFlags progression.AbilityFlags

func (f *flexFlags) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '[' {
		var names []string
		if err := json.Unmarshal(b, &names); err != nil {
			return err
		}
		abilities := make([]progression.Ability, 0, len(names))
		for _, n := range names {
			abilities = append(abilities, progression.Ability(strings.ToLower(strings.TrimSpace(n))))
		}
		*f = flexFlags(progression.FlagsOf(abilities...))
		return nil
	}
	var m map[string]bool
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	var abilities []progression.Ability
	for k, on := range m {
		if on {
			abilities = append(abilities, progression.Ability(strings.ToLower(k)))
		}
	}
	*f = flexFlags(progression.FlagsOf(abilities...))
	return nil
}

// flexIDs accepts a list of ids, or a list of objects carrying an id.
type flexIDs []string

func (f *flexIDs) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		var id flexID
		if len(item) > 0 && item[0] == '{' {
			var obj struct {
				ID flexID `json:"id"`
			}
			if err := json.Unmarshal(item, &obj); err != nil {
				return err
			}
			id = obj.ID
		} else if err := json.Unmarshal(item, &id); err != nil {
			return err
		}
		if id != "" {
			out = append(out, string(id))
		}
	}
	*f = out
	return nil
}

// ─── Records ─────────────────────────────────────────────────────────────────

type classRecord struct {
	ID         flexID          `json:"id"`
	Name       string          `json:"name"`
	Grade      string          `json:"grade"`
	SchoolYear string          `json:"schoolYear"`
	CreatedAt  flexTime        `json:"createdAt"`
	Students   []studentRecord `json:"students"`
}

type abilityCounters struct {
	Intelligence  flexInt `json:"intelligence"`
	Diligence     flexInt `json:"diligence"`
	Creativity    flexInt `json:"creativity"`
	Personality   flexInt `json:"personality"`
	Health        flexInt `json:"health"`
	Communication flexInt `json:"communication"`
}

func (a abilityCounters) toDomain() progression.Abilities {
	return progression.Abilities{
		Intelligence:  max(a.Intelligence.or(0), 0),
		Diligence:     max(a.Diligence.or(0), 0),
		Creativity:    max(a.Creativity.or(0), 0),
		Personality:   max(a.Personality.or(0), 0),
		Health:        max(a.Health.or(0), 0),
		Communication: max(a.Communication.or(0), 0),
	}
}

type avatarRecord struct {
	Body   string `json:"body"`
	Head   string `json:"head"`
	Hat    string `json:"hat"`
	Weapon string `json:"weapon"`
}

type studentRecord struct {
	ID        flexID          `json:"id"`
	Name      string          `json:"name"`
	Number    flexInt         `json:"number"`
	Honorific string          `json:"honorific"`
	Title     string          `json:"title"`
	Level     flexInt         `json:"level"`
	Exp       flexInt         `json:"exp"`
	Points    flexInt         `json:"points"`
	Gold      flexInt         `json:"gold"`
	Abilities abilityCounters `json:"abilities"`
	Avatar    *avatarRecord   `json:"avatar"`
	CreatedAt flexTime        `json:"createdAt"`
}

type missionRecord struct {
	ID          flexID    `json:"id"`
	Name        string    `json:"name"`
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
	Achievers   flexIDs   `json:"achievers"`
	CompletedBy flexIDs   `json:"completedBy"`
	Exp         flexInt   `json:"exp"`
	Gold        flexInt   `json:"gold"`
	Abilities   flexFlags `json:"abilities"`
	CreatedAt   flexTime  `json:"createdAt"`
}

type stepRecord struct {
	Goal      string
	Achievers []string
}

func (s *stepRecord) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &s.Goal)
	}
	var obj struct {
		Goal      string  `json:"goal"`
		Title     string  `json:"title"`
		Name      string  `json:"name"`
		Achievers flexIDs `json:"achievers"`
		Students  flexIDs `json:"students"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	s.Goal = firstNonEmpty(obj.Goal, obj.Title, obj.Name)
	s.Achievers = append(append([]string{}, obj.Achievers...), obj.Students...)
	return nil
}

type roadmapRecord struct {
	ID          flexID       `json:"id"`
	Name        string       `json:"name"`
	Title       string       `json:"title"`
	Steps       []stepRecord `json:"steps"`
	RewardTitle string       `json:"rewardTitle"`
	Icon        string       `json:"icon"`
	Abilities   flexFlags    `json:"abilities"`
	CreatedAt   flexTime     `json:"createdAt"`
}

type cardRecord struct {
	ID          flexID    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Exp         flexInt   `json:"exp"`
	Gold        flexInt   `json:"gold"`
	Abilities   flexFlags `json:"abilities"`
	CreatedAt   flexTime  `json:"createdAt"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
