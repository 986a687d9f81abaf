package harvest

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usestring/schema-harvester/internal/selector"
	"github.com/usestring/schema-harvester/pkg/jsonschema"
)

func TestObservePayloadReportsChanges(t *testing.T) {
	h := New(StreamMetadata("cars"))

	steps := []struct {
		payload string
		changed bool
	}{
		{`{"color": "red", "seats": 4}`, true},
		{`{"color": "blue", "seats": 5}`, false},
		{`{"color": "green"}`, true},
		{`{"seats": 2}`, true},
		{`{"color": "black", "seats": 2.5}`, true},
	}
	for _, step := range steps {
		changed, err := h.ObservePayload([]byte(step.payload))
		require.NoError(t, err, step.payload)
		assert.Equal(t, step.changed, changed, step.payload)
	}

	assert.Equal(t, Stats{Observed: 5, Changed: 4}, h.Stats())

	root, ok := h.Hypothesis().Root()
	require.True(t, ok)
	assert.Equal(t, "object{color?:string, seats?:number}", root.String())

	out, err := h.Render()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"$id": "https:://github.com/elmarx/schema-harvester",
		"$schema": "http://json-schema.org/draft-07/schema#",
		"title": "cars",
		"description": "Auto-generated schema for cars",
		"type": "object",
		"properties": {
			"color": {"type": "string"},
			"seats": {"type": "number"}
		},
		"required": []
	}`, string(out))
}

func TestObservePayloadEmpty(t *testing.T) {
	h := New(DefaultMetadata())

	for _, payload := range [][]byte{nil, {}, []byte("  \n")} {
		changed, err := h.ObservePayload(payload)
		assert.False(t, changed)
		assert.ErrorIs(t, err, ErrEmptyPayload)
	}
	_, ok := h.Hypothesis().Root()
	assert.False(t, ok)
	assert.Equal(t, Stats{Empty: 3}, h.Stats())
}

func TestObservePayloadInvalidJSON(t *testing.T) {
	for _, sel := range []string{"", ".data"} {
		s, err := selector.Compile(sel)
		require.NoError(t, err)
		h := New(DefaultMetadata(), WithSelector(s))

		for _, payload := range []string{`{"a":`, `nope`, `{"a": 1} {"b": 2}`} {
			_, err := h.ObservePayload([]byte(payload))
			var de *DecodeError
			require.True(t, errors.As(err, &de), "selector %q payload %q: %v", sel, payload, err)
		}
		assert.Equal(t, int64(3), h.Stats().Skipped, sel)
	}
}

func TestObservePayloadWithSelector(t *testing.T) {
	s, err := selector.Compile(selector.CloudEvents)
	require.NoError(t, err)
	h := New(DefaultMetadata(), WithSelector(s))

	changed, err := h.ObservePayload([]byte(`{"specversion": "1.0", "data": {"id": 1}}`))
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = h.ObservePayload([]byte(`{"specversion": "1.0"}`))
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, err = h.ObservePayload([]byte(`{"specversion": "1.0", "data": null}`))
	assert.ErrorIs(t, err, ErrEmptyPayload)

	root, _ := h.Hypothesis().Root()
	assert.Equal(t, "object{id:integer}", root.String())
	assert.Equal(t, Stats{Observed: 1, Changed: 1, Empty: 2}, h.Stats())
}

func TestSelectorErrorIsNotDecodeError(t *testing.T) {
	s, err := selector.Compile(".a.b")
	require.NoError(t, err)
	h := New(DefaultMetadata(), WithSelector(s))

	_, err = h.ObservePayload([]byte(`{"a": "text"}`))
	require.Error(t, err)
	var de *DecodeError
	assert.False(t, errors.As(err, &de))
	assert.NotErrorIs(t, err, ErrEmptyPayload)
}

func TestWithHypothesisResumes(t *testing.T) {
	prev := jsonschema.NewHypothesis("old", "old", "old").
		ObserveValue(map[string]any{"a": "x"})

	h := New(StreamMetadata("orders"), WithHypothesis(prev))
	changed, err := h.ObservePayload([]byte(`{"a": "y"}`))
	require.NoError(t, err)
	assert.False(t, changed)

	hyp := h.Hypothesis()
	assert.Equal(t, "orders", hyp.Title)
	assert.Equal(t, "Auto-generated schema for orders", hyp.Description)

	changed, err = h.ObservePayload([]byte(`{"b": 1}`))
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestConcurrentObserve(t *testing.T) {
	h := New(DefaultMetadata())
	payloads := []string{`{"a": 1}`, `{"b": "2023-01-01"}`, `{"a": "x"}`, `[1]`}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.ObservePayload([]byte(payloads[i%len(payloads)]))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	sequential := New(DefaultMetadata())
	for _, p := range payloads {
		_, err := sequential.ObservePayload([]byte(p))
		require.NoError(t, err)
	}
	assert.True(t, sequential.Hypothesis().Equal(h.Hypothesis()))
	assert.Equal(t, int64(40), h.Stats().Observed)
}
