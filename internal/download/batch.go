package download

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/romctl/internal/catalog"
)

// Result pairs an entry with its outcome.
type Result struct {
	Entry   catalog.Entry
	Outcome Outcome
	Elapsed time.Duration
}

// Summary aggregates a batch run.
type Summary struct {
	RunID     string
	Total     int // entries requested
	Succeeded int
	Skipped   int
	Failed    int
	Cancelled bool
	Started   time.Time
	Finished  time.Time
	Results   []Result
}

// Processed is the number of entries that produced an outcome.
func (s Summary) Processed() int {
	return s.Succeeded + s.Skipped + s.Failed
}

// SuccessRate is the percentage of processed entries that succeeded.
func (s Summary) SuccessRate() float64 {
	n := s.Processed()
	if n == 0 {
		return 0
	}
	return float64(s.Succeeded) * 100 / float64(n)
}

func (s *Summary) add(r Result) {
	switch r.Outcome.(type) {
	case Success:
		s.Succeeded++
	case Skipped:
		s.Skipped++
	default:
		s.Failed++
	}
	s.Results = append(s.Results, r)
}

// Run downloads entries sequentially with the configured delay between
// them. A failing entry never stops the batch; cancelling ctx does. onResult,
// when set, is called after each entry.
func (o *Orchestrator) Run(ctx context.Context, entries []catalog.Entry, onResult func(i int, r Result)) Summary {
	sum := Summary{RunID: uuid.NewString(), Total: len(entries), Started: o.now()}
	log := o.log.With("run", sum.RunID)
	log.Info("batch started", "entries", len(entries))

	for i := range entries {
		if i > 0 {
			if err := sleep(ctx, o.opts.EntryDelay); err != nil {
				sum.Cancelled = true
				break
			}
		}
		if ctx.Err() != nil {
			sum.Cancelled = true
			break
		}

		start := o.now()
		out := o.resolveAndDownload(ctx, &entries[i], sum.RunID)
		r := Result{Entry: entries[i], Outcome: out, Elapsed: o.now().Sub(start)}
		sum.add(r)
		if onResult != nil {
			onResult(i, r)
		}
	}

	sum.Finished = o.now()
	log.Info("batch finished",
		"succeeded", sum.Succeeded, "skipped", sum.Skipped, "failed", sum.Failed,
		"cancelled", sum.Cancelled, "elapsed", sum.Finished.Sub(sum.Started))
	return sum
}

// RunPending loads pending entries from the store and runs them.
func (o *Orchestrator) RunPending(ctx context.Context, f catalog.Filter, onResult func(i int, r Result)) (Summary, error) {
	entries, err := o.store.Pending(ctx, f)
	if err != nil {
		return Summary{}, err
	}
	return o.Run(ctx, entries, onResult), nil
}
