package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog holds the domain keyword tables, clarification patterns, and
// response templates that tune the pipeline. It is loaded from YAML at
// startup so content owners can adjust it without code changes; a missing
// or corrupt file falls back to the compiled-in defaults and is never fatal.
type Catalog struct {
	Properties map[string]Property `yaml:"properties"`

	// Category detection keywords, matched against the normalized query.
	Categories []CategoryKeywords `yaml:"categories"`

	// Topic inference over recent user turns, checked in order; first
	// match wins.
	Topics []TopicKeywords `yaml:"topics"`

	Synonyms map[string][]string `yaml:"synonyms"`

	// Queries containing one of these already name a concrete subject and
	// are never ambiguous on their own.
	SpecificTargets []string `yaml:"specific_targets"`

	// Context clarifications are checked before the generic ambiguous
	// patterns (higher specificity wins).
	ContextClarifications []ContextClarification `yaml:"context_clarifications"`
	AmbiguousPatterns     []AmbiguousPattern     `yaml:"ambiguous_patterns"`

	// Facility alias index: alias text -> the properties hosting a
	// facility by that name.
	Facilities []FacilityEntry `yaml:"facilities"`

	Forbidden ForbiddenRules `yaml:"forbidden"`

	// Stock phrases the generator must not emit; removed during the
	// verifier's quality pass.
	ForbiddenPhrases []string `yaml:"forbidden_phrases"`

	// Proper nouns that are always valid even when absent from evidence.
	KnownNames []string `yaml:"known_names"`

	// Per-category exclusive vocabulary used by the contamination check.
	Exclusive []ExclusiveKeywords `yaml:"exclusive_keywords"`

	Templates Templates `yaml:"templates"`
}

type Property struct {
	Name        string   `yaml:"name"`
	Phone       string   `yaml:"phone"`
	LocationURL string   `yaml:"location_url"`
	Aliases     []string `yaml:"aliases"`
}

type CategoryKeywords struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

type TopicKeywords struct {
	Topic    string   `yaml:"topic"`
	Keywords []string `yaml:"keywords"`
}

type ContextClarification struct {
	Context  string   `yaml:"context"`
	Keywords []string `yaml:"keywords"`
	// Direct triggers mean the user already asked a concrete question;
	// clarification is skipped and retrieval proceeds.
	DirectTriggers []string `yaml:"direct_triggers"`
	Question       string   `yaml:"question"`
	Options        []string `yaml:"options"`
}

type AmbiguousPattern struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Excludes []string `yaml:"excludes"`
	Question string   `yaml:"question"`
	Options  []string `yaml:"options"`
}

type FacilityEntry struct {
	Alias      string `yaml:"alias"`
	Facility   string `yaml:"facility"`
	PropertyID string `yaml:"property_id"`
}

type ForbiddenRules struct {
	PersonalInfo []string `yaml:"personal_info"`
	Payment      []string `yaml:"payment"`
}

type ExclusiveKeywords struct {
	Category string   `yaml:"category"`
	Own      []string `yaml:"own"`
	Foreign  []string `yaml:"foreign"`
}

type Templates struct {
	Refusal           string `yaml:"refusal"`
	TransitRefusal    string `yaml:"transit_refusal"`
	PersonalInfoBlock string `yaml:"personal_info_block"`
	PaymentRedirect   string `yaml:"payment_redirect"`
	GenerationFailure string `yaml:"generation_failure"`
}

// LoadCatalog reads the catalog from path, falling back to DefaultCatalog
// when the file is missing or malformed.
func LoadCatalog(path string, logger *slog.Logger) Catalog {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("catalog_fallback", "path", path, "error", err)
		return DefaultCatalog()
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		logger.Warn("catalog_fallback", "path", path, "error", err)
		return DefaultCatalog()
	}
	if err := catalog.validate(); err != nil {
		logger.Warn("catalog_fallback", "path", path, "error", err)
		return DefaultCatalog()
	}
	return catalog
}

func (c *Catalog) validate() error {
	if len(c.Properties) == 0 {
		return fmt.Errorf("catalog: no properties defined")
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("catalog: no category keywords defined")
	}
	if c.Templates.Refusal == "" {
		return fmt.Errorf("catalog: refusal template missing")
	}
	return nil
}

// PropertyByID resolves property metadata; the zero Property is returned for
// unknown IDs so callers can degrade to generic contact wording.
func (c *Catalog) PropertyByID(id string) Property {
	return c.Properties[id]
}

// ContactLine formats the official-channel pointer used by refusal and
// policy templates.
func (c *Catalog) ContactLine(propertyID string) string {
	p := c.Properties[propertyID]
	if p.Name != "" && p.Phone != "" {
		return fmt.Sprintf("%s (%s)", p.Name, p.Phone)
	}
	return "the hotel front desk"
}
