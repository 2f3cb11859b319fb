package s1_sector

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// ErrCyclicPropagation is returned when the propagation table is not a depth-1 DAG
var ErrCyclicPropagation = errors.New("propagation table must be a depth-1 DAG")

// IndexRule maps a name keyword to an index code
type IndexRule struct {
	Keyword string `yaml:"keyword" validate:"required"`
	Code    string `yaml:"code" validate:"required,numeric"`
}

// PropagationRule declares the children that receive a parent's flow
type PropagationRule struct {
	Parent   string   `yaml:"parent" validate:"required,startswith=KRX:"`
	Children []string `yaml:"children" validate:"required,min=1,dive,required,startswith=KRX:"`
}

// Rules is the hand-authored sector rule table
// ⭐ SSOT: 섹터 키워드/전파 규칙은 여기서만
type Rules struct {
	IndexRules  []IndexRule       `yaml:"index_rules" validate:"required,min=1,dive"`
	Propagation []PropagationRule `yaml:"propagation" validate:"dive"`
}

// DefaultRules returns the embedded rule table
func DefaultRules() (*Rules, error) {
	return ParseRules(defaultRulesYAML)
}

// LoadRules reads a rule file; an empty path yields the embedded defaults
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sector rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rule document
func ParseRules(data []byte) (*Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse sector rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &rules, nil
}

// Validate checks field constraints and the propagation graph shape
func (r *Rules) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		return fmt.Errorf("invalid sector rules: %w", err)
	}

	parents := make(map[string]bool, len(r.Propagation))
	for _, p := range r.Propagation {
		if parents[p.Parent] {
			return fmt.Errorf("duplicate propagation parent %s", p.Parent)
		}
		parents[p.Parent] = true
	}
	for _, p := range r.Propagation {
		for _, child := range p.Children {
			if child == p.Parent {
				return fmt.Errorf("%w: %s is its own child", ErrCyclicPropagation, child)
			}
			if parents[child] {
				return fmt.Errorf("%w: %s is both parent and child", ErrCyclicPropagation, child)
			}
		}
	}
	return nil
}

// ChildrenOf returns the parent→children lookup
func (r *Rules) ChildrenOf() map[string][]string {
	out := make(map[string][]string, len(r.Propagation))
	for _, p := range r.Propagation {
		out[p.Parent] = append([]string(nil), p.Children...)
	}
	return out
}

// ParentsOf returns the child→parents lookup used for SectorDefinition.ParentIDs
func (r *Rules) ParentsOf() map[string][]string {
	out := make(map[string][]string)
	for _, p := range r.Propagation {
		for _, child := range p.Children {
			out[child] = append(out[child], p.Parent)
		}
	}
	return out
}
