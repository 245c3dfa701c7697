package spectator

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPublishPayloadOmitsNaNByDefault(t *testing.T) {
	id := NewIdEmpty("requestCount").withStatistic(StatCount)
	ms := []Measurement{
		{Id: id, Timestamp: 1000, Value: 2.0},
		{Id: NewIdEmpty("idle").withStatistic(StatGauge), Timestamp: 1000, Value: math.NaN()},
	}

	payload, dropped, err := BuildPublishPayload(map[string]string{"app": "demo"}, ms, true)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	metrics := decoded["metrics"].([]any)
	assert.Len(t, metrics, 1)

	first := metrics[0].(map[string]any)
	tags := first["tags"].(map[string]any)
	assert.Equal(t, "requestCount", tags["name"])
	assert.Equal(t, "sum", tags["atlas.dstype"])
	assert.Equal(t, "demo", tags["app"])
}

func TestBuildPublishPayloadLiteralNaNRoundTrips(t *testing.T) {
	ms := []Measurement{{Id: NewIdEmpty("idle").withStatistic(StatGauge), Timestamp: 1000, Value: math.NaN()}}
	payload, dropped, err := BuildPublishPayload(nil, ms, false)
	require.NoError(t, err)
	assert.Equal(t, 0, dropped)
	assert.Contains(t, string(payload), `"value":"NaN"`)
}

func TestDstypeForStat(t *testing.T) {
	assert.Equal(t, "sum", dstypeForStat(StatCount))
	assert.Equal(t, "gauge", dstypeForStat(StatMax))
	assert.Equal(t, "gauge", dstypeForStat(StatGauge))
	assert.Equal(t, "gauge", dstypeForStat(StatDuration))
	assert.Equal(t, "gauge", dstypeForStat(StatActiveTasks))
}

func TestParseSubscriptionPayloadDropsNonMultipleFrequencies(t *testing.T) {
	data := []byte(`{"expressions":[
		{"id":"a","expression":"name,foo,:eq","frequency":60000},
		{"id":"b","expression":"name,bar,:eq","frequency":45000}
	]}`)

	accepted, discarded, err := ParseSubscriptionPayload(data, 60000)
	require.NoError(t, err)
	assert.Equal(t, 1, discarded)
	require.Len(t, accepted, 1)
	assert.Equal(t, "a", accepted[0].Id)
}

func TestBuildEvalPayloadsSplitsBatches(t *testing.T) {
	metrics := make([]EvalMetric, 5)
	for i := range metrics {
		metrics[i] = EvalMetric{Id: "sub1", Value: float64(i)}
	}
	messages := []EvalMessage{NewEvalMessage("sub1", "info", "ok")}

	payloads, err := BuildEvalPayloads(1000, metrics, messages, 2)
	require.NoError(t, err)
	assert.Len(t, payloads, 3)

	var first map[string]any
	require.NoError(t, json.Unmarshal(payloads[0], &first))
	assert.NotEmpty(t, first["messages"])

	var second map[string]any
	require.NoError(t, json.Unmarshal(payloads[1], &second))
	assert.Nil(t, second["messages"])
}

func TestParseValidationResponse(t *testing.T) {
	resp, err := ParseValidationResponse([]byte(`{"type":"error","errorCount":3,"message":["bad tag"]}`))
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 3, resp.ErrorCount)

	empty, err := ParseValidationResponse(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}
