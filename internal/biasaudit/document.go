package biasaudit

import (
	"gopkg.in/yaml.v3"

	dErrors "equilens/pkg/domain-errors"
)

// ParseConfigDocument materializes an AuditConfig from a JSON or YAML
// document. YAML is a superset of JSON, so a single decoder covers both
// wire shapes:
//
//	categories:
//	  sex:
//	    label: Sex
//	    groups: [Female, Male]
//	intersectional:
//	  required: true
//	  cross: [sex, race_ethnicity]
//	threshold: 0.80
//	small_sample_exclusion: 0.02
//
// An absent threshold defaults to the four-fifths 0.80; an absent
// small_sample_exclusion means no exclusion. The returned config is
// validated.
func ParseConfigDocument(doc []byte) (AuditConfig, error) {
	// Distinguish "threshold: 0" (explicitly disabled) from an absent field.
	var raw struct {
		Categories           map[string]CategoryConfig `yaml:"categories"`
		Intersectional       IntersectionalConfig      `yaml:"intersectional"`
		Threshold            *float64                  `yaml:"threshold"`
		SmallSampleExclusion *float64                  `yaml:"small_sample_exclusion"`
		Metadata             map[string]any            `yaml:"metadata"`
	}
	if err := yaml.Unmarshal(doc, &raw); err != nil {
		return AuditConfig{}, dErrors.Wrap(dErrors.CodeBadRequest, "malformed audit config document", err)
	}

	cfg := AuditConfig{
		Categories:           raw.Categories,
		Intersectional:       raw.Intersectional,
		Threshold:            DefaultThreshold,
		SmallSampleExclusion: raw.SmallSampleExclusion,
		Metadata:             raw.Metadata,
	}
	if raw.Threshold != nil {
		cfg.Threshold = *raw.Threshold
	}

	if err := cfg.Validate(); err != nil {
		return AuditConfig{}, err
	}
	return cfg, nil
}
