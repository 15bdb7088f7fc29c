package changefeed

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultResyncSpec is how often live views are told to re-fetch without a write.
const DefaultResyncSpec = "@every 5m"

// Resync periodically publishes an OpResync event so subscribers recover from
// a notification lost in transit.
type Resync struct {
	scheduler *cron.Cron
	publisher Publisher
	table     string
	spec      string
}

// NewResync validates spec and registers the job. Call Start to run it.
func NewResync(spec, table string, publisher Publisher) (*Resync, error) {
	if spec == "" {
		spec = DefaultResyncSpec
	}
	r := &Resync{
		scheduler: cron.New(),
		publisher: publisher,
		table:     table,
		spec:      spec,
	}
	if _, err := r.scheduler.AddFunc(spec, r.Run); err != nil {
		return nil, fmt.Errorf("invalid resync schedule %q: %w", spec, err)
	}
	return r, nil
}

// Run publishes one resync event.
func (r *Resync) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	event := Event{Table: r.table, Op: OpResync, At: time.Now()}
	if err := r.publisher.Publish(ctx, event); err != nil {
		log.Printf("Warning: failed to publish resync event for %s: %v", r.table, err)
	}
}

func (r *Resync) Start() {
	r.scheduler.Start()
	log.Printf("Resync scheduler started for %s with spec '%s'", r.table, r.spec)
}

// Stop halts the scheduler and waits for a running job to finish.
func (r *Resync) Stop() {
	<-r.scheduler.Stop().Done()
}
