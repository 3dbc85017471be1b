package project

import (
	"fmt"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/modelgraph/internal/extract"
	"github.com/leapstack-labs/modelgraph/internal/unused"
)

// ModelSchema is the documentation block of one model in schema metadata.
type ModelSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Columns     []ColumnSchema `json:"columns,omitempty"`
	// Tests are model-level tests, not attached to a column.
	Tests []TestSpec `json:"tests,omitempty"`
	// File is the metadata file that declared the model.
	File string `json:"file"`
}

// ColumnSchema documents one column of a model.
type ColumnSchema struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Tests       []TestSpec `json:"tests,omitempty"`
}

// TestNames returns the names of the column's tests.
func (c ColumnSchema) TestNames() []string {
	out := make([]string, len(c.Tests))
	for i, t := range c.Tests {
		out[i] = t.Name
	}
	return out
}

// TestSpec is one generic test entry. It is written either as a bare name
// ("unique") or as a single-key mapping to its arguments
// ({accepted_values: {values: [a, b]}}).
type TestSpec struct {
	Name   string         `json:"name"`
	Config map[string]any `json:"config,omitempty"`
}

// UnmarshalYAML accepts both test entry forms. A mapping whose value is not
// itself a mapping stores that value under "values".
func (t *TestSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		t.Name = node.Value
		return nil
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: test entry must have exactly one key", node.Line)
		}
		t.Name = node.Content[0].Value
		val := node.Content[1]
		switch val.Kind {
		case yaml.MappingNode:
			return val.Decode(&t.Config)
		case yaml.ScalarNode:
			if val.Tag == "!!null" {
				return nil
			}
		}
		var v any
		if err := val.Decode(&v); err != nil {
			return err
		}
		t.Config = map[string]any{"values": v}
		return nil
	default:
		return fmt.Errorf("line %d: test entry must be a name or a mapping", node.Line)
	}
}

// stringList decodes either a single string or a sequence of strings.
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		if node.Value != "" {
			*l = stringList{node.Value}
		}
		return nil
	}
	var s []string
	if err := node.Decode(&s); err != nil {
		return err
	}
	*l = s
	return nil
}

type schemaColumn struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Tests       []TestSpec `yaml:"tests"`
	DataTests   []TestSpec `yaml:"data_tests"`
}

type schemaModel struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Tags        stringList     `yaml:"tags"`
	Columns     []schemaColumn `yaml:"columns"`
	Tests       []TestSpec     `yaml:"tests"`
	DataTests   []TestSpec     `yaml:"data_tests"`
	Config      struct {
		Tags stringList `yaml:"tags"`
	} `yaml:"config"`
}

type schemaFile struct {
	Models  []schemaModel `yaml:"models"`
	Sources []struct {
		Name   string `yaml:"name"`
		Tables []struct {
			Name string `yaml:"name"`
		} `yaml:"tables"`
	} `yaml:"sources"`
	Exposures []struct {
		Name      string   `yaml:"name"`
		DependsOn []string `yaml:"depends_on"`
	} `yaml:"exposures"`
}

// SchemaSet is everything read from schema files.
type SchemaSet struct {
	Declared unused.Declared
	// Models holds one entry per documented model, sorted by name.
	Models []ModelSchema
}

// ParseMetadata reads one schema document. Unknown keys are ignored.
func ParseMetadata(data []byte) (unused.Declared, error) {
	md, err := ParseSchema("", data)
	if err != nil {
		return unused.Declared{}, err
	}
	return md.Declared, nil
}

// ParseSchema reads one schema document, recording file as the origin of
// each documented model.
func ParseSchema(file string, data []byte) (*SchemaSet, error) {
	md := newSchemaSet()
	if err := md.merge(file, data); err != nil {
		return nil, err
	}
	md.normalize()
	return md, nil
}

func newSchemaSet() *SchemaSet {
	return &SchemaSet{Declared: unused.Declared{Exposures: make(map[string][]string)}}
}

func (md *SchemaSet) merge(file string, data []byte) error {
	var f schemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	d := &md.Declared
	for _, m := range f.Models {
		if m.Name == "" {
			continue
		}
		d.Models = append(d.Models, m.Name)
		ms := ModelSchema{
			Name:        m.Name,
			Description: m.Description,
			Tags:        append(append([]string(nil), m.Tags...), m.Config.Tags...),
			Tests:       append(m.Tests, m.DataTests...),
			File:        file,
		}
		for _, c := range m.Columns {
			ms.Columns = append(ms.Columns, ColumnSchema{
				Name:        c.Name,
				Description: c.Description,
				Tests:       append(c.Tests, c.DataTests...),
			})
		}
		md.Models = append(md.Models, ms)
	}
	for _, s := range f.Sources {
		for _, t := range s.Tables {
			if s.Name != "" && t.Name != "" {
				d.Sources = append(d.Sources, extract.SourceRef{Namespace: s.Name, Name: t.Name}.ID())
			}
		}
	}
	for _, e := range f.Exposures {
		if e.Name == "" {
			continue
		}
		var ids []string
		for _, dep := range e.DependsOn {
			ids = append(ids, extract.Extract("", dep).Refs...)
		}
		d.Exposures[e.Name] = append(d.Exposures[e.Name], ids...)
	}
	return nil
}

func (md *SchemaSet) normalize() {
	d := &md.Declared
	d.Models = dedupe(d.Models)
	d.Sources = dedupe(d.Sources)
	d.Macros = dedupe(d.Macros)
	for name, ids := range d.Exposures {
		d.Exposures[name] = dedupe(ids)
	}
	for i := range md.Models {
		md.Models[i].Tags = dedupe(md.Models[i].Tags)
	}
	sort.SliceStable(md.Models, func(i, j int) bool {
		return md.Models[i].Name < md.Models[j].Name
	})
}

// findSchema looks id up in models sorted by name. When several files
// describe the same model the first one in path order wins.
func findSchema(models []ModelSchema, id string) (ModelSchema, bool) {
	i := sort.Search(len(models), func(i int) bool { return models[i].Name >= id })
	if i < len(models) && models[i].Name == id {
		return models[i], true
	}
	return ModelSchema{}, false
}

func dedupe(ids []string) []string {
	sort.Strings(ids)
	return slices.Compact(ids)
}
