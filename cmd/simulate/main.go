// Command simulate runs the reading pipeline offline against the in-memory
// repository and reports how tank statuses and published events evolve. It
// is a tuning aid for the simulator's scenario bands.
//
// Usage:
//
//	go run ./cmd/simulate -cycles 48 -seed 7
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/fuel-tank-telemetry/internal/adapter/memory"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/domain"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/observability"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/pipeline"
	"github.com/couchcryptid/fuel-tank-telemetry/internal/simulator"
	"github.com/jonboulle/clockwork"
)

var start = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// eventCounter counts published events per tank.
type eventCounter map[string]int

func (c eventCounter) Publish(e domain.FuelLevelEvent) { c[e.TankID]++ }

// report summarizes a run.
type report struct {
	cycles    int
	persisted int
	published eventCounter
	statuses  map[domain.Status]int
	final     []domain.TankReading
}

func main() {
	cycles := flag.Int("cycles", 48, "number of automated cycles to run")
	seed := flag.Uint64("seed", 1, "simulator seed (0 uses the current time)")
	interval := flag.Duration("interval", 30*time.Minute, "simulated time between cycles")
	verbose := flag.Bool("v", false, "log scenario selection at debug level")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	r, err := simulate(context.Background(), *cycles, *seed, *interval, logger)
	if err != nil {
		log.Fatal(err)
	}
	r.print(os.Stdout)
}

func simulate(ctx context.Context, cycles int, seed uint64, interval time.Duration, logger *slog.Logger) (report, error) {
	clock := clockwork.NewFakeClockAt(start)
	repo := memory.New(clock)
	if err := repo.SeedTanks(ctx, domain.DemoTanks()); err != nil {
		return report{}, err
	}

	published := eventCounter{}
	svc := pipeline.New(repo, simulator.NewSeeded(seed, logger), published, logger, observability.NewMetricsForTesting())
	if err := svc.InitializeAll(ctx); err != nil {
		return report{}, err
	}

	r := report{cycles: cycles, published: published, statuses: map[domain.Status]int{}}
	for range cycles {
		clock.Advance(interval)
		result, err := svc.AutomatedCycle(ctx)
		if err != nil {
			return report{}, err
		}
		if result.Failed > 0 {
			return report{}, fmt.Errorf("%d tanks failed", result.Failed)
		}
		r.persisted += result.Persisted

		latest, err := svc.LatestReadings(ctx)
		if err != nil {
			return report{}, err
		}
		for _, tr := range latest {
			r.statuses[tr.Status]++
		}
		r.final = latest
	}
	return r, nil
}

func (r report) print(out io.Writer) {
	fmt.Fprintf(out, "cycles: %d  readings persisted: %d\n\n", r.cycles, r.persisted)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TANK\tNAME\tFINAL %\tSTATUS\tEVENTS")
	for _, tr := range r.final {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%d\n",
			tr.Tank.ID, tr.Tank.Name, tr.Reading.FuelLevelPercentage, tr.Status, r.published[tr.Tank.ID])
	}
	w.Flush()

	fmt.Fprintln(out, "\nstatus distribution over all cycles:")
	for _, s := range []domain.Status{domain.StatusCritical, domain.StatusLow, domain.StatusNormal, domain.StatusFull} {
		fmt.Fprintf(out, "  %-8s %d\n", s, r.statuses[s])
	}
}
