// Package institution classifies author affiliations into broad
// categories by keyword, with the keyword tables kept in an embedded
// YAML file so the lists stay readable.
package institution

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matsen/scholarimpact/internal/citation"
)

//go:embed rules.yaml
var rulesYAML []byte

type ruleSet struct {
	Categories []struct {
		Name     string   `yaml:"name"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"categories"`
}

// Categorizer classifies affiliations against a loaded rule set.
type Categorizer struct {
	rules ruleSet
}

// NewCategorizer loads the embedded rules.
func NewCategorizer() (*Categorizer, error) {
	var rules ruleSet
	if err := yaml.Unmarshal(rulesYAML, &rules); err != nil {
		return nil, fmt.Errorf("parsing institution rules: %w", err)
	}
	return &Categorizer{rules: rules}, nil
}

// Categorize maps an affiliation string to a category. A structured
// source type hint (e.g. OpenAlex "education"/"company"/"government")
// takes precedence over keyword matching; empty affiliations are Other.
func (c *Categorizer) Categorize(sourceType, affiliation string) citation.InstitutionCategory {
	switch strings.ToLower(strings.TrimSpace(sourceType)) {
	case "education":
		return citation.InstUniversity
	case "company":
		return citation.InstIndustry
	case "government", "facility":
		return citation.InstGovernment
	}

	lower := strings.ToLower(affiliation)
	if strings.TrimSpace(lower) == "" {
		return citation.InstOther
	}
	for _, cat := range c.rules.Categories {
		for _, kw := range cat.Keywords {
			if containsKeyword(lower, kw) {
				return citation.InstitutionCategory(cat.Name)
			}
		}
	}
	return citation.InstOther
}

// containsKeyword matches short corporate suffixes ("inc", "ltd") only
// as whole words so "Princeton" does not read as industry.
func containsKeyword(affiliation, kw string) bool {
	if len(kw) > 4 {
		return strings.Contains(affiliation, kw)
	}
	for _, word := range strings.FieldsFunc(affiliation, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '(' || r == ')'
	}) {
		if word == kw {
			return true
		}
	}
	return false
}
