package agent

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

type Tier string

const (
	TierReadOnly    Tier = "T1"
	TierSoftConfirm Tier = "T2"
	TierHardConfirm Tier = "T3"
)

func (t Tier) Valid() bool {
	return t == TierReadOnly || t == TierSoftConfirm || t == TierHardConfirm
}

var (
	ErrUnknownTool = errors.New("unknown tool")
	ErrBadArgs     = errors.New("invalid tool arguments")
)

//go:embed tools.yaml
var toolsYAML []byte

type Param struct {
	Name     string `yaml:"name" json:"name"`
	Type     string `yaml:"type" json:"type"`
	Required bool   `yaml:"required" json:"required"`
}

type Tool struct {
	Name        string  `yaml:"name" json:"name"`
	Tier        Tier    `yaml:"tier" json:"tier"`
	Description string  `yaml:"description" json:"description"`
	Params      []Param `yaml:"params" json:"params,omitempty"`
}

type Catalog struct {
	tools map[string]Tool
}

func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(toolsYAML)
}

func ParseCatalog(raw []byte) (*Catalog, error) {
	var doc struct {
		Tools []Tool `yaml:"tools"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse tool catalog: %w", err)
	}
	c := &Catalog{tools: make(map[string]Tool, len(doc.Tools))}
	for _, t := range doc.Tools {
		if t.Name == "" {
			return nil, errors.New("tool catalog: tool without name")
		}
		if !t.Tier.Valid() {
			return nil, fmt.Errorf("tool catalog: %s has tier %q", t.Name, t.Tier)
		}
		if _, dup := c.tools[t.Name]; dup {
			return nil, fmt.Errorf("tool catalog: duplicate tool %s", t.Name)
		}
		c.tools[t.Name] = t
	}
	return c, nil
}

func (c *Catalog) Lookup(name string) (Tool, error) {
	t, ok := c.tools[name]
	if !ok {
		return Tool{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t, nil
}

// All returns the tools sorted by name.
func (c *Catalog) All() []Tool {
	out := make([]Tool, 0, len(c.tools))
	for _, t := range c.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CheckArgs verifies required params are present and roughly typed.
func (t Tool) CheckArgs(raw json.RawMessage) error {
	args := map[string]interface{}{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &args); err != nil {
			return fmt.Errorf("%w: arguments must be a JSON object", ErrBadArgs)
		}
	}
	for _, p := range t.Params {
		v, ok := args[p.Name]
		if !ok || v == nil {
			if p.Required {
				return fmt.Errorf("%w: %s is required", ErrBadArgs, p.Name)
			}
			continue
		}
		if !typeMatches(p.Type, v) {
			return fmt.Errorf("%w: %s must be %s", ErrBadArgs, p.Name, p.Type)
		}
	}
	return nil
}

func typeMatches(want string, v interface{}) bool {
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "integer":
		f, ok := v.(float64)
		return ok && f == float64(int64(f))
	case "object":
		_, ok := v.(map[string]interface{})
		return ok
	case "array":
		_, ok := v.([]interface{})
		return ok
	default:
		return true
	}
}
