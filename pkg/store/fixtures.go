package store

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Fixtures maps a table name to the records to seed into it.
type Fixtures map[string][]Record

// LoadFixtures reads a YAML or JSON document of the form
//
//	phones:
//	  - id: P1
//	    price: 100
//
// Keys keep their case; JSON input is accepted since it is valid YAML.
func LoadFixtures(path string) (Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(data)
}

func ParseFixtures(data []byte) (Fixtures, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}

	fx := make(Fixtures, len(raw))
	if err := mapstructure.Decode(raw, &fx); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	for table, recs := range fx {
		for i, rec := range recs {
			fx[table][i] = Record(normalizeYAML(map[string]any(rec)).(map[string]any))
		}
	}
	return fx, nil
}

// normalizeYAML converts integers to float64 so seeded numbers compare the
// same way as numbers decoded from JSON request bodies.
func normalizeYAML(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeYAML(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalizeYAML(e)
		}
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	default:
		return v
	}
}
