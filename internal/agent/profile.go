package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// profileDoc mirrors Profile but with yaml tags; interest profiles are
// authored by hand outside of kto, so the on-disk shape uses the more
// human-friendly YAML syntax rather than kto's internal JSON wire format.
type profileDoc struct {
	Description string `yaml:"description"`
	Interests   []struct {
		Name     string   `yaml:"name"`
		Keywords []string `yaml:"keywords"`
		Weight   float64  `yaml:"weight"`
		Scope    string   `yaml:"scope"`
	} `yaml:"interests"`
}

// LoadProfile reads an interest-profile YAML file from disk. A watch only
// receives the profile in its agent request when its AgentConfig.UseProfile
// is set; profiles themselves are global and shared across watches.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agent: load profile: %w", err)
	}

	var doc profileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("agent: parse profile %s: %w", path, err)
	}

	p := &Profile{Description: doc.Description}
	for _, i := range doc.Interests {
		p.Interests = append(p.Interests, ProfileInterest{
			Name:     i.Name,
			Keywords: i.Keywords,
			Weight:   i.Weight,
			Scope:    i.Scope,
		})
	}
	return p, nil
}
