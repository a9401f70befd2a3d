package classifier

import (
	"context"
	"fmt"
	"os"

	"scamwatch/internal/model"
	"scamwatch/internal/store"

	"gopkg.in/yaml.v3"
)

// Seed is the YAML file holding the keyword and forbidden-name lists.
type Seed struct {
	model.Keywords `yaml:",inline"`
	ForbiddenNames []string `yaml:"forbidden_names"`
}

// LoadSeed parses the seed file at path.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return &s, nil
}

// Apply writes both lists to the config collection, replacing what is stored.
func (s *Seed) Apply(ctx context.Context, st store.Store) error {
	if err := st.Save(ctx, &s.Keywords); err != nil {
		return fmt.Errorf("save keywords: %w", err)
	}
	if err := st.Save(ctx, &model.ForbiddenNames{Names: s.ForbiddenNames}); err != nil {
		return fmt.Errorf("save forbidden names: %w", err)
	}
	return nil
}
