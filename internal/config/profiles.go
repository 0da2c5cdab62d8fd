package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/brokerscan/internal/model"
)

// ProfileEntry is one person in a batch list. A bare string is read as
// the name.
type ProfileEntry struct {
	Name    string `yaml:"name"`
	City    string `yaml:"city"`
	State   string `yaml:"state"`
	Phone   string `yaml:"phone"`
	Address string `yaml:"address"`
}

// UnmarshalYAML accepts a bare name or a record.
func (e *ProfileEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		e.Name = node.Value
		return nil
	}
	type plain ProfileEntry
	return node.Decode((*plain)(e))
}

// LoadProfiles reads a batch list: a YAML or JSON sequence of entries, or
// a mapping with a "profiles" sequence. Every entry must have a name.
func LoadProfiles(path string) ([]*model.ClientProfile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided list path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to read profile list: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfileList, err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}

	var entries []ProfileEntry
	switch root.Kind {
	case yaml.SequenceNode:
		err = root.Decode(&entries)
	case yaml.MappingNode:
		var wrapped struct {
			Profiles []ProfileEntry `yaml:"profiles"`
		}
		err = root.Decode(&wrapped)
		entries = wrapped.Profiles
	default:
		return nil, ErrNoProfiles
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfileList, err)
	}
	if len(entries) == 0 {
		return nil, ErrNoProfiles
	}

	profiles := make([]*model.ClientProfile, 0, len(entries))
	for i, e := range entries {
		p, err := model.NewClientProfile(e.Name,
			model.WithCity(e.City),
			model.WithState(e.State),
			model.WithPhone(e.Phone),
			model.WithAddress(e.Address),
		)
		if err != nil {
			return nil, fmt.Errorf("profile %d: %w", i+1, err)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}
