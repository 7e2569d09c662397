package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// LocationKind tags the on-disk shape of a location's progression.
type LocationKind int

const (
	// LocationFlat is a single record carrying Xp and Level.
	LocationFlat LocationKind = iota
	// LocationNested maps sub-keys (sniper unlockables) to records.
	LocationNested
)

func (k LocationKind) String() string {
	switch k {
	case LocationFlat:
		return "flat"
	case LocationNested:
		return "nested"
	default:
		return fmt.Sprintf("LocationKind(%d)", int(k))
	}
}

// LocationRecord is XP and level for one location or sub-key.
type LocationRecord struct {
	Xp               int `json:"Xp"`
	Level            int `json:"Level"`
	PreviouslySeenXp int `json:"PreviouslySeenXp"`
}

// LocationProgression is either a flat record or a mapping of child
// records. The kind is decided when decoding: a record with an "Xp" key is
// flat.
type LocationProgression struct {
	Kind   LocationKind
	Flat   LocationRecord
	Nested map[string]*LocationRecord
}

// NewFlatLocation returns a flat record with the given XP and level.
func NewFlatLocation(xp, level int) *LocationProgression {
	return &LocationProgression{Kind: LocationFlat, Flat: LocationRecord{Xp: xp, Level: level}}
}

// UnmarshalJSON decides the kind by the presence of an Xp key.
func (l *LocationProgression) UnmarshalJSON(data []byte) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return fmt.Errorf("location progression: %w", err)
	}

	if _, ok := keys["Xp"]; ok || len(keys) == 0 {
		var rec LocationRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("flat location progression: %w", err)
		}
		*l = LocationProgression{Kind: LocationFlat, Flat: rec}
		return nil
	}

	nested := make(map[string]*LocationRecord, len(keys))
	for key, raw := range keys {
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		var rec LocationRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("nested location progression %q: %w", key, err)
		}
		nested[key] = &rec
	}
	*l = LocationProgression{Kind: LocationNested, Nested: nested}
	return nil
}

// MarshalJSON writes the shape matching Kind.
func (l LocationProgression) MarshalJSON() ([]byte, error) {
	if l.Kind == LocationNested {
		if l.Nested == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(l.Nested)
	}
	return json.Marshal(l.Flat)
}
