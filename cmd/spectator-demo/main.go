// Command spectator-demo wires a Registry, Scheduler, and HTTP publish
// client together the way an embedding application would, and emits a
// handful of example meters so the pipeline has something to publish.
//
// Grounded on the teacher's server.go: read config, construct the
// long-lived services, start background workers, block until signaled,
// shut down in reverse order.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlasmetrics/spectator-go/internal/spectatorconfig"
	"github.com/atlasmetrics/spectator-go/pkg/publish"
	"github.com/atlasmetrics/spectator-go/pkg/scheduler"
	"github.com/atlasmetrics/spectator-go/pkg/spectator"
	"github.com/atlasmetrics/spectator-go/pkg/spectatorlog"
)

func main() {
	configPath := flag.String("config", "", "path to a spectator JSON config document")
	flag.Parse()

	raw := []byte(`{}`)
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			spectatorlog.Fatalf("reading config: %v", err)
		}
		raw = data
	}

	cfg, err := spectatorconfig.Load(raw)
	if err != nil {
		spectatorlog.Fatalf("loading config: %v", err)
	}
	spectator.ConfigureCharset(cfg.ValidTagCharacters, cfg.ValidTagValueCharacters)

	clock := spectator.SystemClock{}
	registry, poller := spectator.NewRegistryWithScheduler(
		cfg.StepDuration().Milliseconds(), clock, nil, cfg.GaugePollingFrequencyDuration(),
	)
	defer poller.Stop()

	client := publish.NewClient(cfg, registry.InstanceID())
	sched, err := scheduler.New(registry, cfg, client)
	if err != nil {
		spectatorlog.Fatalf("building scheduler: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		spectatorlog.Fatalf("starting scheduler: %v", err)
	}
	defer sched.Stop()

	emitDemoMeters(registry)

	spectatorlog.Info("spectator-demo running, instance id", registry.InstanceID())
	<-ctx.Done()
	spectatorlog.Info("spectator-demo shutting down")
}

// emitDemoMeters registers a small set of meters and starts a goroutine
// that exercises them at a realistic cadence, so a freshly started demo
// has non-empty output to publish.
func emitDemoMeters(registry *spectator.Registry) {
	requests := registry.Counter(spectator.NewId("server.requestCount", map[string]string{"method": "GET"}))
	latency := registry.Timer(spectator.NewId("server.requestLatency", nil))
	inflight := registry.Gauge(spectator.NewId("server.inflightRequests", nil))

	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		var active int64
		for range ticker.C {
			requests.Increment()
			latency.Record(25 * time.Millisecond)
			active = (active + 1) % 10
			inflight.Set(float64(active))
		}
	}()
}
