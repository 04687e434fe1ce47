package biasaudit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDocument(t *testing.T) {
	t.Run("parses YAML document", func(t *testing.T) {
		doc := []byte(`
categories:
  sex:
    label: Sex
    groups: [Female, Male]
  race_ethnicity:
    label: Race / Ethnicity
intersectional:
  required: true
  cross: [sex, race_ethnicity]
threshold: 0.75
small_sample_exclusion: 0.02
metadata:
  source: hiring-2026-q3
`)
		cfg, err := ParseConfigDocument(doc)
		require.NoError(t, err)

		assert.Len(t, cfg.Categories, 2)
		assert.Equal(t, "Sex", cfg.Categories["sex"].Label)
		assert.Equal(t, []string{"Female", "Male"}, cfg.Categories["sex"].Groups)
		assert.True(t, cfg.Intersectional.Required)
		assert.Equal(t, 0.75, cfg.Threshold)
		require.NotNil(t, cfg.SmallSampleExclusion)
		assert.Equal(t, 0.02, *cfg.SmallSampleExclusion)
		assert.Equal(t, "hiring-2026-q3", cfg.Metadata["source"])
	})

	t.Run("parses JSON document", func(t *testing.T) {
		doc := []byte(`{
			"categories": {"sex": {"label": "Sex"}},
			"intersectional": {"required": false},
			"threshold": 0.80
		}`)
		cfg, err := ParseConfigDocument(doc)
		require.NoError(t, err)
		assert.Equal(t, "Sex", cfg.Categories["sex"].Label)
	})

	t.Run("absent threshold defaults to four-fifths", func(t *testing.T) {
		doc := []byte(`{"categories": {"sex": {"label": "Sex"}}}`)
		cfg, err := ParseConfigDocument(doc)
		require.NoError(t, err)
		assert.Equal(t, DefaultThreshold, cfg.Threshold)
	})

	t.Run("explicit zero threshold disables flagging", func(t *testing.T) {
		doc := []byte(`{"categories": {"sex": {"label": "Sex"}}, "threshold": 0}`)
		cfg, err := ParseConfigDocument(doc)
		require.NoError(t, err)
		assert.Zero(t, cfg.Threshold)
	})

	t.Run("absent small_sample_exclusion means none", func(t *testing.T) {
		doc := []byte(`{"categories": {"sex": {"label": "Sex"}}}`)
		cfg, err := ParseConfigDocument(doc)
		require.NoError(t, err)
		assert.Nil(t, cfg.SmallSampleExclusion)
	})

	t.Run("rejects malformed document", func(t *testing.T) {
		_, err := ParseConfigDocument([]byte(`{"categories": [`))
		require.Error(t, err)
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		doc := []byte(`{
			"categories": {"sex": {"label": "Sex"}},
			"intersectional": {"required": true, "cross": ["sex"]}
		}`)
		_, err := ParseConfigDocument(doc)
		require.Error(t, err)
	})
}
