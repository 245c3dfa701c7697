// Package scheduler drives the publish/evaluator pipeline (§4.9): a
// gocron job ticks at the publish step boundary and runs
// snapshot -> consolidate -> rollup -> aggregate -> publish -> evaluate;
// a second job polls the subscription list and atomically swaps in a
// freshly built QueryIndex; a third sweeps expired meters.
//
// Grounded on internal/taskmanager/taskManager.go's shape: a package
// holding one gocron.Scheduler, one NewJob call per background
// activity, gocron.WithStartAt(gocron.WithStartImmediately()) for
// tasks that should run once at registration before waiting out their
// first interval, and a Shutdown that stops the scheduler.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/errgroup"

	"github.com/atlasmetrics/spectator-go/internal/query"
	"github.com/atlasmetrics/spectator-go/internal/queryindex"
	"github.com/atlasmetrics/spectator-go/internal/spectatorconfig"
	"github.com/atlasmetrics/spectator-go/pkg/publish"
	"github.com/atlasmetrics/spectator-go/pkg/rollup"
	"github.com/atlasmetrics/spectator-go/pkg/spectator"
	"github.com/atlasmetrics/spectator-go/pkg/spectatorlog"
)

// subscriptionRefreshInterval is how often the config endpoint is
// polled for the current subscription list; independent of the publish
// step since subscriptions may be added well before their evaluation
// frequency next lines up.
const subscriptionRefreshInterval = 10 * time.Second

type subscription struct {
	id          string
	dataExpr    query.DataExpr
	frequencyMs int64
}

// Scheduler owns the background jobs that turn a Registry's
// accumulated state into published and evaluated output.
type Scheduler struct {
	registry *spectator.Registry
	cfg      *spectatorconfig.Config
	client   *publish.Client
	gocron   gocron.Scheduler
	rollup   *rollup.Policy

	primaryStepMillis int64
	publishStepMillis int64

	mu            sync.RWMutex
	index         *queryindex.QueryIndex[string]
	subscriptions map[string]subscription

	consolMu      sync.Mutex
	consolidators map[string]spectator.Consolidator
}

// New builds a Scheduler. It does not start any background job until
// Start is called.
func New(registry *spectator.Registry, cfg *spectatorconfig.Config, client *publish.Client) (*Scheduler, error) {
	g, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("scheduler: creating gocron scheduler: %w", err)
	}
	return &Scheduler{
		registry:          registry,
		cfg:               cfg,
		client:            client,
		gocron:            g,
		rollup:            rollup.NewPolicy(cfg.CommonTags),
		primaryStepMillis: cfg.StepDuration().Milliseconds(),
		publishStepMillis: cfg.PublishStepDuration().Milliseconds(),
		index:             queryindex.NewIndex[string](),
		subscriptions:     make(map[string]subscription),
		consolidators:     make(map[string]spectator.Consolidator),
	}, nil
}

// SetRollupPolicy replaces the default (common-tags-only) rollup
// policy applied to every measurement before aggregation. Must be
// called before Start; the scheduler does not synchronize reads of
// this field against a concurrently running tick.
func (s *Scheduler) SetRollupPolicy(p *rollup.Policy) {
	s.rollup = p
}

// Start registers the publish tick, subscription-refresh tick, and
// meter-sweep tick, then starts the gocron scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.IsEnabled() {
		if _, err := s.gocron.NewJob(
			gocron.DurationJob(s.cfg.PublishStepDuration()),
			gocron.NewTask(func() { s.tick(ctx) }),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		); err != nil {
			return fmt.Errorf("scheduler: registering publish tick: %w", err)
		}
	}

	if s.cfg.IsLwcEnabled() {
		if _, err := s.gocron.NewJob(
			gocron.DurationJob(subscriptionRefreshInterval),
			gocron.NewTask(func() { s.refreshSubscriptions(ctx) }),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		); err != nil {
			return fmt.Errorf("scheduler: registering subscription refresh: %w", err)
		}
	}

	if _, err := s.gocron.NewJob(
		gocron.DurationJob(s.cfg.StepDuration()),
		gocron.NewTask(func() { s.registry.Sweep(time.Now().UnixMilli()) }),
	); err != nil {
		return fmt.Errorf("scheduler: registering meter sweep: %w", err)
	}

	s.gocron.Start()
	return nil
}

// Stop halts the scheduler and performs a final Registry.Close.
func (s *Scheduler) Stop() error {
	err := s.gocron.Shutdown()
	s.registry.Close()
	return err
}

func (s *Scheduler) refreshSubscriptions(ctx context.Context) {
	data, err := s.client.FetchSubscriptions(ctx)
	if err != nil {
		spectatorlog.ComponentWarn("scheduler", "fetching subscriptions:", err)
		return
	}
	accepted, discarded, err := spectator.ParseSubscriptionPayload(data, s.publishStepMillis)
	if err != nil {
		spectatorlog.ComponentWarn("scheduler", "parsing subscriptions:", err)
		return
	}
	if discarded > 0 {
		spectatorlog.ComponentWarn("scheduler", discarded, "subscription expressions discarded (frequency not a multiple of the publish step)")
	}

	newIndex := queryindex.NewIndex[string]()
	newSubs := make(map[string]subscription, len(accepted))
	for _, e := range accepted {
		d, err := query.ParseSubscription(e.Expression)
		if err != nil {
			spectatorlog.ComponentWarn("scheduler", "invalid subscription expression", e.Id, err)
			continue
		}
		newIndex.Add(d.Filter, e.Id)
		newSubs[e.Id] = subscription{id: e.Id, dataExpr: d, frequencyMs: e.FrequencyMs}
	}

	s.mu.Lock()
	s.index = newIndex
	s.subscriptions = newSubs
	s.mu.Unlock()
}

// tick runs one snapshot -> consolidate -> rollup -> aggregate ->
// publish -> evaluate cycle.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UnixMilli()
	raw := s.registry.Measurements()
	consolidated := s.consolidate(now, raw)
	aggregated := s.rollup.ApplyAndAggregate(now, consolidated)

	payload, dropped, err := spectator.BuildPublishPayload(nil, aggregated, true)
	if err != nil {
		spectatorlog.ComponentError("scheduler", "building publish payload:", err)
		return
	}
	if dropped > 0 {
		spectatorlog.ComponentDebug("scheduler", dropped, "NaN measurements omitted from publish payload")
		s.registry.Counter(spectator.NewId("ipc.dropped", map[string]string{"error": "nan"})).Add(int64(dropped))
	}
	sent := len(aggregated) - dropped
	body, err := s.client.Publish(ctx, payload)
	if err != nil {
		spectatorlog.ComponentWarn("scheduler", "publish failed:", err)
		s.trackPublishFailure(sent, err)
	} else {
		s.trackValidation(sent, body)
	}

	if s.cfg.IsLwcEnabled() {
		s.evaluate(ctx, now, aggregated)
	}
}

// trackValidation parses a publish response for a partial-validation
// report and folds the result into self-monitoring counters: "sent"
// for measurements the backend accepted, "dropped" tagged
// error=validation for the count it rejected.
func (s *Scheduler) trackValidation(sent int, body []byte) {
	vr, err := spectator.ParseValidationResponse(body)
	if err != nil {
		spectatorlog.ComponentWarn("scheduler", "parsing validation response:", err)
		return
	}
	if vr != nil && vr.ErrorCount > 0 {
		sent -= vr.ErrorCount
		s.registry.Counter(spectator.NewId("ipc.dropped", map[string]string{"error": "validation"})).Add(int64(vr.ErrorCount))
	}
	if sent > 0 {
		s.registry.Counter(spectator.NewId("ipc.sent", nil)).Add(int64(sent))
	}
}

// trackPublishFailure folds a failed publish attempt into self-monitoring
// counters per §6/§7: an HTTP 400 response carrying a partial-validation
// body means the backend considered every measurement in the batch
// invalid, so the whole batch is counted dropped,error=validation exactly
// as a 202 partial rejection would count its errorCount share. Any other
// non-2xx response (a dead server, a 5xx after retries are exhausted) is
// a transport/server failure, counted dropped,error=http instead.
func (s *Scheduler) trackPublishFailure(sent int, err error) {
	if sent <= 0 {
		return
	}
	var httpErr *publish.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusBadRequest {
		if vr, parseErr := spectator.ParseValidationResponse(httpErr.Body); parseErr == nil && vr != nil {
			s.registry.Counter(spectator.NewId("ipc.dropped", map[string]string{"error": "validation"})).Add(int64(sent))
			return
		}
	}
	s.registry.Counter(spectator.NewId("ipc.dropped", map[string]string{"error": "http"})).Add(int64(sent))
}

// consolidate routes raw through each measurement's Consolidator when
// the publish step is coarser than the primary step; a measurement
// whose Consolidator is still empty is skipped entirely, per §4.9 step 3.
func (s *Scheduler) consolidate(now int64, raw []spectator.Measurement) []spectator.Measurement {
	if s.publishStepMillis <= s.primaryStepMillis {
		return raw
	}

	out := make([]spectator.Measurement, 0, len(raw))
	s.consolMu.Lock()
	defer s.consolMu.Unlock()
	for _, m := range raw {
		stat, _ := m.Id.TagValue("statistic")
		key := m.Id.Key()
		c, ok := s.consolidators[key]
		if !ok {
			c = spectator.ConsolidatorFor(stat, s.primaryStepMillis, s.publishStepMillis)
			s.consolidators[key] = c
		}
		c.Update(now, m.Value)
		if c.IsEmpty() {
			continue
		}
		out = append(out, spectator.Measurement{Id: m.Id, Timestamp: now, Value: c.Value(now)})
	}
	return out
}

// evaluate matches every post-rollup measurement against the current
// QueryIndex and fans the resulting per-subscription batches out to the
// eval endpoint concurrently.
func (s *Scheduler) evaluate(ctx context.Context, now int64, measurements []spectator.Measurement) {
	s.mu.RLock()
	index := s.index
	subs := s.subscriptions
	s.mu.RUnlock()
	if index.IsEmpty() {
		return
	}

	rawBatches := make(map[string][]spectator.EvalMetric)
	for _, m := range measurements {
		tags := make(map[string]string, len(m.Id.Tags())+1)
		for _, t := range m.Id.Tags() {
			tags[t.Key] = t.Value
		}
		tags["name"] = m.Id.Name()

		for _, subID := range index.FindMatches(tags) {
			rawBatches[subID] = append(rawBatches[subID], spectator.EvalMetric{Id: subID, Tags: tags, Value: m.Value})
		}
	}
	if len(rawBatches) == 0 {
		return
	}

	// A subscription with a non-empty aggregation Op groups its matches
	// by the :by tag keys (or into a single group when :by is absent)
	// before they are sent on; a plain filter subscription (Op == "")
	// forwards every match individually, unchanged.
	batches := make(map[string][]spectator.EvalMetric, len(rawBatches))
	for subID, metrics := range rawBatches {
		sub, ok := subs[subID]
		if !ok || sub.dataExpr.Op == "" {
			batches[subID] = metrics
			continue
		}
		batches[subID] = aggregateGroups(subID, sub.dataExpr, metrics)
	}

	g, gctx := errgroup.WithContext(ctx)
	for subID, metrics := range batches {
		subID, metrics := subID, metrics
		g.Go(func() error {
			payloads, err := spectator.BuildEvalPayloads(now, metrics, nil, s.cfg.BatchSize)
			if err != nil {
				return fmt.Errorf("subscription %s: %w", subID, err)
			}
			if err := s.client.PublishEval(gctx, payloads); err != nil {
				return fmt.Errorf("subscription %s: %w", subID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		spectatorlog.ComponentWarn("scheduler", "eval publish:", err)
	}
}

// aggregateGroups folds metrics into one EvalMetric per :by group (or a
// single group covering all of them when d.By is empty), applying d's
// combining operator to each group's running value. Group order is not
// significant; the tags attached to each result are the group's By-key
// values, which is all a :sum/:min/:max/:count subscription can assume
// about measurements it has folded together.
func aggregateGroups(subID string, d query.DataExpr, metrics []spectator.EvalMetric) []spectator.EvalMetric {
	type group struct {
		tags  map[string]string
		value float64
		seen  bool
	}

	groups := make(map[string]*group)
	var order []string
	for _, m := range metrics {
		key := d.GroupKey(m.Tags)
		g, ok := groups[key]
		if !ok {
			tags := make(map[string]string, len(d.By))
			for _, k := range d.By {
				tags[k] = m.Tags[k]
			}
			g = &group{tags: tags}
			groups[key] = g
			order = append(order, key)
		}
		g.value = d.Combine(g.value, m.Value, g.seen)
		g.seen = true
	}

	out := make([]spectator.EvalMetric, 0, len(order))
	for _, key := range order {
		g := groups[key]
		out = append(out, spectator.EvalMetric{Id: subID, Tags: g.tags, Value: g.value})
	}
	return out
}
