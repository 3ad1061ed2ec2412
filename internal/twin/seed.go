package twin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/storesync/internal/model"
)

// Seed is initial twin state, usually loaded from YAML.
type Seed struct {
	Products  []model.Product                    `json:"products"`
	Reviews   []model.Review                     `json:"reviews"`
	Profiles  map[string]map[string]any          `json:"profiles"`
	Favorites map[string][]string                `json:"favorites"`
	Missions  map[string][]model.MissionProgress `json:"missions"`
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes YAML seed data. Field names follow the JSON wire names
// of the model types, so the YAML is normalized through JSON with unknown
// fields rejected.
func ParseSeed(data []byte) (*Seed, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse seed YAML: %w", err)
	}
	if raw == nil {
		return &Seed{}, nil
	}
	js, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("normalize seed: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(js))
	dec.DisallowUnknownFields()
	var s Seed
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &s, nil
}

// Apply loads the seed into m.
func (s *Seed) Apply(m *Memory) {
	m.SetProducts(s.Products)
	for _, r := range s.Reviews {
		m.InsertReview(r)
	}
	for id, doc := range s.Profiles {
		m.PatchProfile(id, doc)
	}
	for id, favs := range s.Favorites {
		for _, p := range favs {
			m.SetFavorite(id, p, true)
		}
	}
	for id, rows := range s.Missions {
		for _, p := range rows {
			m.UpsertMission(id, p)
		}
	}
}
