package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usestring/schema-harvester/internal/metrics"
	"github.com/usestring/schema-harvester/internal/registry"
	"github.com/usestring/schema-harvester/internal/selector"
	"github.com/usestring/schema-harvester/pkg/jsonschema"
)

type fakeSource struct {
	messages chan Message

	mu        sync.Mutex
	committed []Message
}

func newFakeSource(msgs ...Message) *fakeSource {
	s := &fakeSource{messages: make(chan Message, len(msgs))}
	for i, m := range msgs {
		m.Offset = int64(i)
		s.messages <- m
	}
	return s
}

func (s *fakeSource) Fetch(ctx context.Context) (Message, error) {
	select {
	case m := <-s.messages:
		return m, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (s *fakeSource) Commit(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, msg)
	return nil
}

func (s *fakeSource) Close() error { return nil }

func (s *fakeSource) committedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.committed)
}

type published struct {
	key   string
	value []byte
}

type fakeSink struct {
	mu        sync.Mutex
	failures  int
	published []published
}

func (s *fakeSink) Publish(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("broker unavailable")
	}
	s.published = append(s.published, published{key: key, value: value})
	return nil
}

func (s *fakeSink) Close() error { return nil }

func (s *fakeSink) byKey(key string) []published {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []published
	for _, p := range s.published {
		if p.key == key {
			out = append(out, p)
		}
	}
	return out
}

func msg(topic, value string) Message {
	return Message{Topic: topic, Value: []byte(value)}
}

// runUntil runs d until cond holds, then cancels and returns Run's result.
func runUntil(t *testing.T, d *Dispatcher, cond func() bool) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, cond, 5*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not stop")
		return nil
	}
}

func TestDispatcherPublishesOnChange(t *testing.T) {
	source := newFakeSource(
		msg("cars", `{"color": "red"}`),
		msg("bikes", `{"gears": 21}`),
		msg("cars", `{"color": "blue"}`),
		msg("cars", ``),
		msg("cars", `{not json`),
		msg("cars", `{"color": "green", "seats": 4}`),
	)
	sink := &fakeSink{}
	store, err := registry.NewMemory(8)
	require.NoError(t, err)
	m := metrics.New(false)

	d, err := NewDispatcher(source, sink, Options{
		Topics:  []string{"bikes", "cars"},
		Store:   store,
		Metrics: m,
	})
	require.NoError(t, err)

	err = runUntil(t, d, func() bool { return source.committedCount() == 6 })
	require.NoError(t, err)

	cars := sink.byKey("cars")
	require.Len(t, cars, 2)
	first, err := jsonschema.Parse(cars[0].value)
	require.NoError(t, err)
	assert.Equal(t, "cars", first.Title)
	assert.Equal(t, "Auto-generated schema for cars", first.Description)
	root, _ := first.Root()
	assert.Equal(t, "object{color:string}", root.String())

	last, err := jsonschema.Parse(cars[1].value)
	require.NoError(t, err)
	root, _ = last.Root()
	assert.Equal(t, "object{color:string, seats?:integer}", root.String())

	assert.Len(t, sink.byKey("bikes"), 1)

	entry, found, err := store.Get(context.Background(), "cars")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, entry.Revision)
	assert.Equal(t, cars[1].value, entry.Schema)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Messages.WithLabelValues("cars", metrics.OutcomeObserved)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Messages.WithLabelValues("cars", metrics.OutcomeEmpty)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Messages.WithLabelValues("cars", metrics.OutcomeInvalid)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SchemaChanges.WithLabelValues("cars")))
}

func TestDispatcherUnknownTopic(t *testing.T) {
	source := newFakeSource(msg("elsewhere", `{}`))
	d, err := NewDispatcher(source, &fakeSink{}, Options{Topics: []string{"cars"}})
	require.NoError(t, err)

	err = d.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"elsewhere"`)
}

func TestDispatcherRetriesPublish(t *testing.T) {
	source := newFakeSource(msg("cars", `{"a": 1}`))
	sink := &fakeSink{failures: 2}
	m := metrics.New(false)
	d, err := NewDispatcher(source, sink, Options{
		Topics:         []string{"cars"},
		PublishRetries: 2,
		RetryBackoff:   time.Millisecond,
		Metrics:        m,
	})
	require.NoError(t, err)

	err = runUntil(t, d, func() bool { return source.committedCount() == 1 })
	require.NoError(t, err)
	assert.Len(t, sink.byKey("cars"), 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PublishFailures.WithLabelValues("cars")))
}

func TestDispatcherDeliveryFailure(t *testing.T) {
	source := newFakeSource(msg("cars", `{"a": 1}`))
	sink := &fakeSink{failures: 10}
	d, err := NewDispatcher(source, sink, Options{
		Topics:         []string{"cars"},
		PublishRetries: 1,
		RetryBackoff:   time.Millisecond,
	})
	require.NoError(t, err)

	err = d.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDelivery)
	assert.Zero(t, source.committedCount())
}

func TestDispatcherSelectorAndResume(t *testing.T) {
	store, err := registry.NewMemory(8)
	require.NoError(t, err)

	prev := jsonschema.NewHypothesis(jsonschema.DefaultID, "cars", "Auto-generated schema for cars").
		ObserveValue(map[string]any{"color": "red"})
	data, err := jsonschema.MarshalIndent(prev)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), registry.Entry{Stream: "cars", Schema: data, Revision: 7}))

	sel, err := selector.Compile(selector.CloudEvents)
	require.NoError(t, err)

	source := newFakeSource(
		msg("cars", `{"specversion": "1.0", "data": {"color": "blue"}}`),
		msg("cars", `{"specversion": "1.0", "data": {"color": "blue", "doors": 3}}`),
	)
	sink := &fakeSink{}
	d, err := NewDispatcher(source, sink, Options{
		Topics:   []string{"cars"},
		Selector: sel,
		Resume:   true,
		Store:    store,
	})
	require.NoError(t, err)

	err = runUntil(t, d, func() bool { return source.committedCount() == 2 })
	require.NoError(t, err)

	cars := sink.byKey("cars")
	require.Len(t, cars, 1)
	entry, _, err := store.Get(context.Background(), "cars")
	require.NoError(t, err)
	assert.Equal(t, 8, entry.Revision)
}

func TestNewDispatcherRequiresTopics(t *testing.T) {
	_, err := NewDispatcher(newFakeSource(), &fakeSink{}, Options{})
	assert.Error(t, err)
}
