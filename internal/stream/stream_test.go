package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usestring/schema-harvester/internal/config"
)

type staticTopics struct {
	topics []string
	err    error
}

func (s staticTopics) ListTopics(context.Context) ([]string, error) { return s.topics, s.err }

func TestResolveTopics(t *testing.T) {
	cluster := staticTopics{topics: []string{"cars", "schemas", "__consumer_offsets", "bikes"}}

	tests := []struct {
		name       string
		configured []string
		want       []string
	}{
		{"literal", []string{"cars", "planes", "cars"}, []string{"cars", "planes"}},
		{"wildcard", []string{"*"}, []string{"bikes", "cars"}},
		{"wildcard plus literal", []string{"*", "planes"}, []string{"bikes", "cars", "planes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveTopics(context.Background(), cluster, tt.configured, "schemas")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveTopicsErrors(t *testing.T) {
	_, err := ResolveTopics(context.Background(), staticTopics{err: errors.New("boom")}, []string{"*"}, "schemas")
	assert.Error(t, err)

	_, err = ResolveTopics(context.Background(), staticTopics{topics: []string{"schemas"}}, []string{"*"}, "schemas")
	assert.Error(t, err)
}

func TestParseSettings(t *testing.T) {
	s, err := ParseSettings(config.Properties{
		"bootstrap.servers": "a:9092, b:9092",
		"group.id":          "harvester",
		"client.id":         "h-1",
		"compression.type":  "zstd",
		"auto.offset.reset": "latest",
		"linger.ms":         "5",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, s.Brokers)
	assert.Equal(t, "harvester", s.GroupID)
	assert.Equal(t, "h-1", s.ClientID)
	assert.Equal(t, compress.Zstd, s.Compression)
	assert.Equal(t, kafka.LastOffset, s.StartOffset)
	assert.Equal(t, []string{"linger.ms"}, s.Ignored)
	assert.Nil(t, s.Dialer.TLS)
	assert.Nil(t, s.Dialer.SASLMechanism)
}

func TestParseSettingsSecurity(t *testing.T) {
	s, err := ParseSettings(config.Properties{
		"security.protocol": "SASL_SSL",
		"sasl.mechanism":    "SCRAM-SHA-512",
		"sasl.username":     "user",
		"sasl.password":     "secret",
	})
	require.NoError(t, err)
	require.NotNil(t, s.Dialer.TLS)
	require.NotNil(t, s.Dialer.SASLMechanism)
	assert.Equal(t, "SCRAM-SHA-512", s.Dialer.SASLMechanism.Name())

	s, err = ParseSettings(config.Properties{"security.protocol": "sasl_plaintext", "sasl.username": "u"})
	require.NoError(t, err)
	assert.Nil(t, s.Dialer.TLS)
	assert.Equal(t, "PLAIN", s.Dialer.SASLMechanism.Name())
}

func TestParseSettingsRejects(t *testing.T) {
	for name, props := range map[string]config.Properties{
		"protocol":    {"security.protocol": "carrier-pigeon"},
		"mechanism":   {"security.protocol": "sasl_ssl", "sasl.mechanism": "GSSAPI"},
		"compression": {"compression.type": "brotli"},
		"offset":      {"auto.offset.reset": "middle"},
		"ca file":     {"security.protocol": "ssl", "ssl.ca.location": "/does/not/exist.pem"},
	} {
		_, err := ParseSettings(props)
		assert.Error(t, err, name)
	}
}

func TestKafkaClientsRequireBrokers(t *testing.T) {
	s, err := ParseSettings(config.Properties{"group.id": "g"})
	require.NoError(t, err)

	_, err = NewKafkaSource(s, []string{"cars"}, nil)
	assert.Error(t, err)
	_, err = NewKafkaSink(s, "schemas", nil)
	assert.Error(t, err)
}

func TestOpenStoreMemory(t *testing.T) {
	store, err := OpenStore(context.Background(), config.Registry{Kind: config.RegistryMemory, Size: 2})
	require.NoError(t, err)
	defer store.Close()

	streams, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, streams)
}
