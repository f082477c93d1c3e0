package reconcile

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// defaultReliability ranks sources by how much their answers are trusted.
// The official statistics registry outranks everything; a fetch of the
// institution's own site beats aggregators; generic search ranks last.
var defaultReliability = map[string]int{
	"scorecard": 100,
	"website":   90,
	"rankings":  85,
	"knowledge": 70,
	"wikipedia": 60,
	"websearch": 50,
}

// unknownSourceReliability is assigned to sources missing from the table.
const unknownSourceReliability = 50

// Config overrides the static reliability table.
type Config struct {
	Reliability map[string]int `yaml:"reliability"`
}

// DefaultReliability returns a copy of the built-in reliability table.
func DefaultReliability() map[string]int {
	out := make(map[string]int, len(defaultReliability))
	for k, v := range defaultReliability {
		out[k] = v
	}
	return out
}

// LoadConfig reads reliability overrides from a YAML file and merges them
// over the built-in table.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reconcile: read config %s", path)
	}

	var wrapper struct {
		Reconcile Config `yaml:"reconcile"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "reconcile: parse config")
	}

	merged := DefaultReliability()
	for k, v := range wrapper.Reconcile.Reliability {
		merged[k] = v
	}
	return &Config{Reliability: merged}, nil
}
