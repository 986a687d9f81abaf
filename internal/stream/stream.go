// Package stream runs the harvester service loop: it consumes the source
// topics, folds every topic into its own schema, and publishes each new
// schema revision to the sink topic.
package stream

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ErrDelivery wraps a schema that could not be published.
var ErrDelivery = errors.New("schema delivery failed")

// Message is one consumed record.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
}

// Source yields messages of the subscribed topics.
type Source interface {
	Fetch(ctx context.Context) (Message, error)
	// Commit marks msg and every earlier message of its partition as done.
	Commit(ctx context.Context, msg Message) error
	Close() error
}

// Sink publishes rendered schemas keyed by source topic.
type Sink interface {
	Publish(ctx context.Context, key string, value []byte) error
	Close() error
}

// TopicLister lists the topics known to the cluster.
type TopicLister interface {
	ListTopics(ctx context.Context) ([]string, error)
}

// ResolveTopics expands the configured topic list. "*" stands for every
// topic on the cluster except the sink topic and internal "__" topics.
func ResolveTopics(ctx context.Context, lister TopicLister, configured []string, sink string) ([]string, error) {
	if !slices.Contains(configured, "*") {
		return dedupe(configured), nil
	}
	all, err := lister.ListTopics(ctx)
	if err != nil {
		return nil, err
	}
	var topics []string
	for _, t := range all {
		if t == sink || strings.HasPrefix(t, "__") {
			continue
		}
		topics = append(topics, t)
	}
	for _, t := range configured {
		if t != "*" && t != sink {
			topics = append(topics, t)
		}
	}
	topics = dedupe(topics)
	if len(topics) == 0 {
		return nil, fmt.Errorf("no topics to harvest besides sink %q", sink)
	}
	return topics, nil
}

func dedupe(topics []string) []string {
	out := slices.Clone(topics)
	slices.Sort(out)
	return slices.Compact(out)
}
