package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/usestring/schema-harvester/internal/harvest"
	"github.com/usestring/schema-harvester/internal/metrics"
	"github.com/usestring/schema-harvester/internal/registry"
	"github.com/usestring/schema-harvester/internal/selector"
	"github.com/usestring/schema-harvester/pkg/jsonschema"
)

// Options configures a Dispatcher.
type Options struct {
	Topics []string
	// QueueSize bounds the messages buffered per topic. Defaults to 10.
	QueueSize int
	// PublishRetries is the number of retries after a failed publish.
	PublishRetries int
	// RetryBackoff is the delay before the first retry; it doubles on every
	// further retry. Defaults to 200ms.
	RetryBackoff time.Duration
	Selector     *selector.Selector
	// Resume seeds each topic with the schema found in the store.
	Resume bool

	Store   registry.Store
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Dispatcher demultiplexes the source into one worker per topic.
type Dispatcher struct {
	source Source
	sink   Sink
	opts   Options
	logger *slog.Logger
}

// NewDispatcher validates opts and returns a Dispatcher.
func NewDispatcher(source Source, sink Sink, opts Options) (*Dispatcher, error) {
	if len(opts.Topics) == 0 {
		return nil, errors.New("no topics to harvest")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 10
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 200 * time.Millisecond
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(false)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{source: source, sink: sink, opts: opts, logger: logger}, nil
}

// Run consumes until ctx is cancelled or an error occurs. Cancellation is
// not an error.
func (d *Dispatcher) Run(ctx context.Context) error {
	queues := make(map[string]chan Message, len(d.opts.Topics))
	workers := make([]*worker, 0, len(d.opts.Topics))
	for _, topic := range d.opts.Topics {
		h, revision, err := d.newHarvester(ctx, topic)
		if err != nil {
			return err
		}
		q := make(chan Message, d.opts.QueueSize)
		queues[topic] = q
		workers = append(workers, &worker{d: d, topic: topic, harvester: h, revision: revision, queue: q})
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		d.logger.Info("harvesting topic", "topic", w.topic, "resumed_revision", w.revision)
		g.Go(func() error { return w.run(ctx) })
	}

	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		for {
			msg, err := d.source.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("fetching message: %w", err)
			}
			q, ok := queues[msg.Topic]
			if !ok {
				return fmt.Errorf("got a message for topic %q which is not subscribed", msg.Topic)
			}
			select {
			case q <- msg:
				d.opts.Metrics.QueueDepth.WithLabelValues(msg.Topic).Set(float64(len(q)))
			case <-ctx.Done():
				return nil
			}
		}
	})

	return g.Wait()
}

func (d *Dispatcher) newHarvester(ctx context.Context, topic string) (*harvest.Harvester, int, error) {
	opts := []harvest.Option{harvest.WithSelector(d.opts.Selector)}
	revision := 0
	if d.opts.Resume && d.opts.Store != nil {
		entry, found, err := d.opts.Store.Get(ctx, topic)
		if err != nil {
			return nil, 0, fmt.Errorf("loading stored schema for %s: %w", topic, err)
		}
		if found {
			prev, err := jsonschema.Parse(entry.Schema)
			if err != nil {
				d.logger.Warn("ignoring unreadable stored schema", "topic", topic, "error", err)
			} else {
				opts = append(opts, harvest.WithHypothesis(prev))
				revision = entry.Revision
			}
		}
	}
	return harvest.New(harvest.StreamMetadata(topic), opts...), revision, nil
}

type worker struct {
	d         *Dispatcher
	topic     string
	harvester *harvest.Harvester
	revision  int
	queue     <-chan Message
}

func (w *worker) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-w.queue:
			if !ok {
				return nil
			}
			w.d.opts.Metrics.QueueDepth.WithLabelValues(w.topic).Set(float64(len(w.queue)))
			if err := w.process(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if err := w.d.source.Commit(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("committing %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
			}
		}
	}
}

func (w *worker) process(ctx context.Context, msg Message) error {
	m := w.d.opts.Metrics
	logger := w.d.logger.With("topic", w.topic, "partition", msg.Partition, "offset", msg.Offset)

	start := time.Now()
	changed, err := w.harvester.ObservePayload(msg.Value)
	m.ProcessSeconds.WithLabelValues(w.topic).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, harvest.ErrEmptyPayload):
		m.Messages.WithLabelValues(w.topic, metrics.OutcomeEmpty).Inc()
		logger.Debug("skipping empty payload")
		return nil
	case err != nil:
		m.Messages.WithLabelValues(w.topic, metrics.OutcomeInvalid).Inc()
		logger.Warn("skipping message", "error", err)
		return nil
	}
	m.Messages.WithLabelValues(w.topic, metrics.OutcomeObserved).Inc()
	if !changed {
		return nil
	}

	schema, err := w.harvester.Render()
	if err != nil {
		return fmt.Errorf("rendering schema for %s: %w", w.topic, err)
	}
	if err := w.publish(ctx, schema); err != nil {
		return err
	}
	w.revision++
	m.SchemaChanges.WithLabelValues(w.topic).Inc()
	logger.Info("published schema revision", "revision", w.revision)

	if w.d.opts.Store != nil {
		entry := registry.Entry{Stream: w.topic, Schema: schema, Revision: w.revision, UpdatedAt: time.Now().UTC()}
		if err := w.d.opts.Store.Put(ctx, entry); err != nil {
			logger.Warn("storing schema", "error", err)
		}
	}
	return nil
}

func (w *worker) publish(ctx context.Context, schema []byte) error {
	backoff := w.d.opts.RetryBackoff
	var err error
	for attempt := 0; ; attempt++ {
		if err = w.d.sink.Publish(ctx, w.topic, schema); err == nil {
			return nil
		}
		w.d.opts.Metrics.PublishFailures.WithLabelValues(w.topic).Inc()
		if attempt >= w.d.opts.PublishRetries || ctx.Err() != nil {
			break
		}
		w.d.logger.Warn("publishing schema failed, retrying", "topic", w.topic, "attempt", attempt+1, "error", err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", ErrDelivery, w.topic, ctx.Err())
		}
		backoff *= 2
	}
	return fmt.Errorf("%w: %s: %w", ErrDelivery, w.topic, err)
}
