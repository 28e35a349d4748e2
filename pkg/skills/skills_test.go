package skills

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getbindu/bindu/pkg/config"
)

func testConfigs() []config.SkillConfig {
	return []config.SkillConfig{
		{ID: "forecast", Name: "Forecast", Description: "daily forecast", Documentation: "# Forecast"},
		{ID: "alerts", Name: "Alerts", Tags: []string{"weather"}},
	}
}

func TestRegistryOrderAndLookup(t *testing.T) {
	r, err := NewRegistry("https://agent.example.com/", testConfigs())
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "forecast", list[0].ID)
	assert.Equal(t, "alerts", list[1].ID)

	skill, ok := r.Get("alerts")
	require.True(t, ok)
	assert.Equal(t, "Alerts", skill.Name)

	_, ok = r.Get("nope")
	assert.False(t, ok)
}

func TestSummariesCarryDocumentationLinks(t *testing.T) {
	r, err := NewRegistry("https://agent.example.com/", testConfigs())
	require.NoError(t, err)

	summaries := r.Summaries()
	require.Len(t, summaries, 2)
	// Trailing slash on the base URL does not double up.
	assert.Equal(t, "https://agent.example.com/agent/skills/forecast/documentation",
		summaries[0].DocumentationURL)
}

func TestSummariesWithoutBaseURL(t *testing.T) {
	r, err := NewRegistry("", testConfigs())
	require.NoError(t, err)
	assert.Empty(t, r.Summaries()[0].DocumentationURL)
}

func TestDocumentation(t *testing.T) {
	r, err := NewRegistry("https://agent.example.com", testConfigs())
	require.NoError(t, err)

	doc, ok := r.Documentation("forecast")
	require.True(t, ok)
	assert.Equal(t, "# Forecast", doc)

	_, ok = r.Documentation("nope")
	assert.False(t, ok)
}

func TestNewRegistryRejectsBadConfigs(t *testing.T) {
	_, err := NewRegistry("", []config.SkillConfig{{Name: "anonymous"}})
	assert.Error(t, err)

	_, err = NewRegistry("", []config.SkillConfig{{ID: "a"}, {ID: "a"}})
	assert.Error(t, err)
}
