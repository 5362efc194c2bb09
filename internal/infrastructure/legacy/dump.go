// Package legacy imports the key/value dump of the old browser storage.
//
// The dump is a JSON object mapping storage keys to their stored values.
// Student records were copied under several keys per class, so every copy is
// collected, merged with student.Dedupe and written once into the store.
package legacy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Dump maps storage keys to their raw JSON values.
type Dump map[string]json.RawMessage

// ParseDump reads a dump. Values may be JSON-encoded strings, as the browser
// stores them, or plain JSON.
func ParseDump(r io.Reader) (Dump, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("legacy: decode dump: %w", err)
	}

	d := make(Dump, len(raw))
	for k, v := range raw {
		v = bytes.TrimSpace(v)
		if len(v) > 0 && v[0] == '"' {
			var inner string
			if err := json.Unmarshal(v, &inner); err == nil {
				v = json.RawMessage(inner)
			}
		}
		d[k] = v
	}
	return d, nil
}

// Keys returns the dump keys in sorted order.
func (d Dump) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// keyKind classifies a storage key.
type keyKind int

const (
	kindUnknown keyKind = iota
	kindClasses
	kindClass
	kindStudents
	kindRoadmaps
	kindMissions
	kindCards
)

var prefixKinds = []struct {
	prefix string
	kind   keyKind
}{
	{"class_", kindClass},
	{"students_", kindStudents},
	{"roadmaps_", kindRoadmaps},
	{"challenges_", kindRoadmaps},
	{"missions_", kindMissions},
	{"praiseCards_", kindCards},
	{"cards_", kindCards},
}

// classifyKey returns the kind of key and the class id it is scoped to.
func classifyKey(key string) (keyKind, string) {
	if key == "classes" {
		return kindClasses, ""
	}
	if strings.HasPrefix(key, "class-") && strings.HasSuffix(key, "-students") {
		cid := strings.TrimSuffix(strings.TrimPrefix(key, "class-"), "-students")
		if cid != "" {
			return kindStudents, cid
		}
	}
	for _, p := range prefixKinds {
		if cid, ok := strings.CutPrefix(key, p.prefix); ok && cid != "" {
			return p.kind, cid
		}
	}
	return kindUnknown, ""
}
