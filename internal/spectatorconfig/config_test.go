package spectatorconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load([]byte(`{"uri":"http://atlas.example/publish"}`))
	require.NoError(t, err)

	assert.Equal(t, DefaultStep, cfg.StepDuration())
	assert.Equal(t, DefaultPublishStep, cfg.PublishStepDuration())
	assert.Equal(t, DefaultMeterTTL, cfg.MeterTTLDuration())
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.True(t, cfg.IsEnabled())
	assert.True(t, cfg.IsLwcEnabled())
}

func TestLoadHonorsExplicitOptions(t *testing.T) {
	cfg, err := Load([]byte(`{
		"uri": "http://a/publish",
		"step": "10s",
		"lwc.step": "120s",
		"enabled": false,
		"batchSize": 500,
		"commonTags": {"app": "demo"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "10s", cfg.Step)
	assert.False(t, cfg.IsEnabled())
	assert.Equal(t, 500, cfg.BatchSize)
	assert.Equal(t, "demo", cfg.CommonTags["app"])
}

func TestLoadIgnoresUnknownFields(t *testing.T) {
	_, err := Load([]byte(`{"uri":"http://a/publish","notAnOption":true}`))
	require.NoError(t, err)
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	_, err := Load([]byte(`not json`))
	assert.Error(t, err)
}
