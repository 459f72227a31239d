package reply

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTablesYAML []byte

//go:embed tables.schema.json
var tablesSchemaJSON []byte

// DefaultSlug keys the fallback entry of every table
const DefaultSlug = "default"

// KeywordRule maps a lower-case keyword to replies per character slug
type KeywordRule struct {
	Keyword string            `yaml:"keyword"`
	Replies map[string]string `yaml:"replies"`
}

// Tables is the immutable reply data. Keywords are scanned in order.
type Tables struct {
	Keywords  []KeywordRule       `yaml:"keywords"`
	Generic   map[string][]string `yaml:"generic"`
	Welcome   map[string]string   `yaml:"welcome"`
	Reactions struct {
		Image map[string][]string `yaml:"image"`
		File  map[string][]string `yaml:"file"`
	} `yaml:"reactions"`
	CaptionAddendum map[string]string `yaml:"caption_addendum"`
}

// LoadDefaultTables parses the tables compiled into the binary
func LoadDefaultTables() (*Tables, error) {
	return LoadTables(defaultTablesYAML)
}

// LoadTables parses and validates a YAML tables document
func LoadTables(data []byte) (*Tables, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("reply tables parse: %w", err)
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("reply tables invalid: %w", err)
	}

	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("reply tables decode: %w", err)
	}
	return &t, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("tables.schema.json", bytes.NewReader(tablesSchemaJSON)); err != nil {
		return nil, fmt.Errorf("reply tables schema: %w", err)
	}
	schema, err := compiler.Compile("tables.schema.json")
	if err != nil {
		return nil, fmt.Errorf("reply tables schema: %w", err)
	}
	return schema, nil
}

func textFor(m map[string]string, slug string) string {
	if v, ok := m[slug]; ok {
		return v
	}
	return m[DefaultSlug]
}

func poolFor(m map[string][]string, slug string) []string {
	if v, ok := m[slug]; ok && len(v) > 0 {
		return v
	}
	return m[DefaultSlug]
}
