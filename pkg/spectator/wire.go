package spectator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// dstypeForStat maps a statistic tag to the atlas.dstype wire tag:
// rate-like statistics are "sum", point-in-time statistics are "gauge".
func dstypeForStat(stat string) string {
	switch stat {
	case StatMax, StatGauge, StatDuration, StatActiveTasks:
		return "gauge"
	default:
		return "sum"
	}
}

func tagsForMeasurement(id *Id, commonTags map[string]string) map[string]string {
	tags := make(map[string]string, len(id.Tags())+len(commonTags)+3)
	for k, v := range commonTags {
		tags[sanitizeTagComponent(k, k)] = sanitizeTagComponent(k, v)
	}
	for _, t := range id.Tags() {
		tags[sanitizeTagComponent(t.Key, t.Key)] = sanitizeTagComponent(t.Key, t.Value)
	}
	tags["name"] = sanitizeTagComponent("name", id.Name())
	stat, _ := id.TagValue("statistic")
	tags["atlas.dstype"] = dstypeForStat(stat)
	return tags
}

// BuildPublishPayload renders the §6 publish payload. When omitNaN is
// true (the default publish path), measurements whose value is NaN are
// dropped and counted in the returned dropped total rather than
// serialized as the literal token "NaN"; pass false only to exercise the
// literal-token wire format for round-trip tests.
func BuildPublishPayload(commonTags map[string]string, measurements []Measurement, omitNaN bool) (payload []byte, dropped int, err error) {
	var buf bytes.Buffer
	buf.WriteString(`{"tags":`)
	tagsJSON, err := json.Marshal(commonTags)
	if err != nil {
		return nil, 0, fmt.Errorf("spectator: marshal common tags: %w", err)
	}
	buf.Write(tagsJSON)
	buf.WriteString(`,"metrics":[`)

	first := true
	for _, m := range measurements {
		if math.IsNaN(m.Value) && omitNaN {
			dropped++
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false

		tags := tagsForMeasurement(m.Id, commonTags)
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return nil, 0, fmt.Errorf("spectator: marshal measurement tags: %w", err)
		}
		buf.WriteString(`{"tags":`)
		buf.Write(tagsJSON)
		buf.WriteString(`,"timestamp":`)
		buf.WriteString(strconv.FormatInt(m.Timestamp, 10))
		buf.WriteString(`,"value":`)
		buf.WriteString(formatWireValue(m.Value))
		buf.WriteByte('}')
	}
	buf.WriteString(`]}`)
	return buf.Bytes(), dropped, nil
}

// formatWireValue renders a measurement value, emitting NaN as the JSON
// string "NaN" rather than failing the way encoding/json does on
// non-finite floats — NaN only reaches it when BuildPublishPayload is
// called with omitNaN=false.
func formatWireValue(v float64) string {
	if math.IsNaN(v) {
		return `"NaN"`
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// SubscriptionExpression is one entry of the §6 subscription payload.
type SubscriptionExpression struct {
	Id         string `json:"id"`
	Expression string `json:"expression"`
	FrequencyMs int64  `json:"frequency"`
}

type subscriptionPayload struct {
	Expressions []SubscriptionExpression `json:"expressions"`
}

// ParseSubscriptionPayload decodes the subscription list and drops any
// expression whose frequency is not an integer multiple of publishStepMillis,
// returning the accepted list and a count of discarded entries.
func ParseSubscriptionPayload(data []byte, publishStepMillis int64) (accepted []SubscriptionExpression, discarded int, err error) {
	var p subscriptionPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, 0, fmt.Errorf("spectator: parse subscription payload: %w", err)
	}
	for _, e := range p.Expressions {
		if publishStepMillis <= 0 || e.FrequencyMs%publishStepMillis != 0 {
			discarded++
			continue
		}
		accepted = append(accepted, e)
	}
	return accepted, discarded, nil
}

// EvalMetric is one matched measurement in the streaming eval payload.
type EvalMetric struct {
	Id    string            `json:"id"`
	Tags  map[string]string `json:"tags"`
	Value float64           `json:"value"`
}

// EvalMessage is a diagnostic attached to the first batch of an eval tick.
type EvalMessage struct {
	Id      string      `json:"id"`
	Message messageBody `json:"message"`
}

type messageBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewEvalMessage(subscriptionId, kind, text string) EvalMessage {
	return EvalMessage{Id: subscriptionId, Message: messageBody{Type: kind, Message: text}}
}

type evalPayload struct {
	Timestamp int64         `json:"timestamp"`
	Metrics   []EvalMetric  `json:"metrics"`
	Messages  []EvalMessage `json:"messages,omitempty"`
}

// BuildEvalPayloads splits metrics into sub-batches of at most batchSize
// and renders each as a §6 streaming eval payload sharing timestamp;
// messages is attached only to the first batch. A nil/empty metrics
// slice with non-empty messages still yields one payload carrying just
// the messages.
func BuildEvalPayloads(timestamp int64, metrics []EvalMetric, messages []EvalMessage, batchSize int) ([][]byte, error) {
	if batchSize <= 0 {
		batchSize = len(metrics)
		if batchSize == 0 {
			batchSize = 1
		}
	}
	if len(metrics) == 0 {
		p := evalPayload{Timestamp: timestamp, Messages: messages}
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("spectator: marshal eval payload: %w", err)
		}
		return [][]byte{data}, nil
	}

	var payloads [][]byte
	for i := 0; i < len(metrics); i += batchSize {
		end := i + batchSize
		if end > len(metrics) {
			end = len(metrics)
		}
		p := evalPayload{Timestamp: timestamp, Metrics: metrics[i:end]}
		if i == 0 {
			p.Messages = messages
		}
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("spectator: marshal eval payload: %w", err)
		}
		payloads = append(payloads, data)
	}
	return payloads, nil
}

// ValidationResponse is the §6 publish-endpoint partial-error body.
type ValidationResponse struct {
	Type       string   `json:"type"`
	ErrorCount int      `json:"errorCount"`
	Message    []string `json:"message"`
}

// ParseValidationResponse decodes a non-empty validation response body.
func ParseValidationResponse(data []byte) (*ValidationResponse, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var v ValidationResponse
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("spectator: parse validation response: %w", err)
	}
	return &v, nil
}

// sortedTagKeys returns the keys of tags in sorted order, for printing
// tags deterministically.
func sortedTagKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
