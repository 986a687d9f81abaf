// Package config loads the harvester service configuration from compiled-in
// defaults, an optional YAML file, and the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/usestring/schema-harvester/internal/logging"
	"github.com/usestring/schema-harvester/internal/registry"
)

// Defaults
const (
	DefaultConfigFile     = "config.yaml"
	DefaultGroupID        = "schema-harvester"
	DefaultQueueSize      = 10
	DefaultPublishRetries = 3
	DefaultManagementPort = 8080
	DefaultRegistrySize   = 1024
	AllTopics             = "*"
)

// Registry kinds
const (
	RegistryMemory = "memory"
	RegistryRedis  = "redis"
)

// Properties are librdkafka-style client properties such as
// "bootstrap.servers". YAML numbers and booleans are accepted as strings.
type Properties map[string]string

// Config holds the service configuration.
type Config struct {
	// Kafka properties shared by source and sink.
	Kafka      Properties     `yaml:"kafka" json:"kafka,omitempty" jsonschema:"description=Kafka properties shared by source and sink"`
	Source     Source         `yaml:"source" json:"source"`
	Sink       Sink           `yaml:"sink" json:"sink"`
	Management Management     `yaml:"management" json:"management"`
	Registry   Registry       `yaml:"registry" json:"registry"`
	Logging    logging.Config `yaml:"logging" json:"logging"`
}

type Source struct {
	// Topics to harvest; "*" means every topic except the sink.
	Topics     []string   `yaml:"topics" json:"topics" jsonschema:"description=Topics to harvest or * for all"`
	Select     string     `yaml:"select" env:"HARVESTER_SOURCE_SELECT" json:"select,omitempty" jsonschema:"description=jq expression selecting the payload inside each message"`
	QueueSize  int        `yaml:"queue_size" env:"HARVESTER_SOURCE_QUEUE_SIZE" json:"queue_size,omitempty" jsonschema:"minimum=1"`
	Properties Properties `yaml:"properties" json:"properties,omitempty"`
}

type Sink struct {
	Topic          string     `yaml:"topic" env:"HARVESTER_SINK_TOPIC" json:"topic"`
	PublishRetries int        `yaml:"publish_retries" env:"HARVESTER_SINK_PUBLISH_RETRIES" json:"publish_retries,omitempty" jsonschema:"minimum=0"`
	Properties     Properties `yaml:"properties" json:"properties,omitempty"`
}

type Management struct {
	Port    int  `yaml:"port" env:"HARVESTER_MANAGEMENT_PORT" json:"port,omitempty"`
	Metrics bool `yaml:"metrics" env:"HARVESTER_MANAGEMENT_METRICS" json:"metrics,omitempty"`
}

type Registry struct {
	Kind string `yaml:"kind" env:"HARVESTER_REGISTRY_KIND" json:"kind,omitempty" jsonschema:"enum=memory,enum=redis"`
	// Size bounds the number of streams kept by the memory registry.
	Size int `yaml:"size" env:"HARVESTER_REGISTRY_SIZE" json:"size,omitempty"`
	// Resume seeds each topic from its stored schema on start.
	Resume bool                 `yaml:"resume" env:"HARVESTER_REGISTRY_RESUME" json:"resume,omitempty"`
	Redis  registry.RedisConfig `yaml:"redis" json:"redis,omitempty"`
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		Kafka: Properties{},
		Source: Source{
			QueueSize:  DefaultQueueSize,
			Properties: Properties{},
		},
		Sink: Sink{
			PublishRetries: DefaultPublishRetries,
			Properties:     Properties{},
		},
		Management: Management{Port: DefaultManagementPort, Metrics: true},
		Registry:   Registry{Kind: RegistryMemory, Size: DefaultRegistrySize},
		Logging:    logging.DefaultConfig(),
	}
}

// Load builds the configuration. path overrides HARVESTER_CONFIG; when
// neither is set, a missing config.yaml is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if v := os.Getenv("HARVESTER_CONFIG"); !explicit && v != "" {
		path, explicit = v, true
	}
	if path == "" {
		path = DefaultConfigFile
	}

	cfg := Default()
	if err := cfg.loadFile(path, explicit); err != nil {
		return nil, err
	}
	if err := cfg.loadEnv(os.Environ()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv(environ []string) error {
	if err := envdecode.Decode(c); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("decoding environment: %w", err)
	}
	if v, ok := lookup(environ, "HARVESTER_SOURCE_TOPICS"); ok {
		c.Source.Topics = splitList(v)
	}

	c.Kafka = merge(c.Kafka, kafkaFromEnv(environ, "KAFKA_", "KAFKA_SOURCE_", "KAFKA_SINK_"))
	c.Source.Properties = merge(c.Source.Properties, kafkaFromEnv(environ, "KAFKA_SOURCE_"))
	c.Sink.Properties = merge(c.Sink.Properties, kafkaFromEnv(environ, "KAFKA_SINK_"))
	return nil
}

// SourceProperties returns the shared properties overlaid with the source
// properties. group.id defaults to "schema-harvester".
func (c *Config) SourceProperties() Properties {
	props := merge(Properties{"group.id": DefaultGroupID}, c.Kafka)
	return merge(props, c.Source.Properties)
}

// SinkProperties returns the shared properties overlaid with the sink
// properties.
func (c *Config) SinkProperties() Properties {
	return merge(merge(Properties{}, c.Kafka), c.Sink.Properties)
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.SourceProperties()["bootstrap.servers"] == "" {
		errs = append(errs, errors.New("kafka bootstrap.servers is not set (KAFKA_BOOTSTRAP_SERVERS)"))
	}
	if c.Sink.Topic == "" {
		errs = append(errs, errors.New("sink topic is not set (HARVESTER_SINK_TOPIC)"))
	}
	if len(c.Source.Topics) == 0 {
		errs = append(errs, errors.New("no source topics configured (HARVESTER_SOURCE_TOPICS)"))
	}
	if c.Sink.Topic != "" && slices.Contains(c.Source.Topics, c.Sink.Topic) {
		errs = append(errs, fmt.Errorf("sink topic %q is also a source topic", c.Sink.Topic))
	}
	if c.Source.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("source queue_size must be positive, got %d", c.Source.QueueSize))
	}
	if c.Sink.PublishRetries < 0 {
		errs = append(errs, fmt.Errorf("sink publish_retries must not be negative, got %d", c.Sink.PublishRetries))
	}
	switch c.Registry.Kind {
	case RegistryMemory:
		if c.Registry.Size < 1 {
			errs = append(errs, fmt.Errorf("registry size must be positive, got %d", c.Registry.Size))
		}
	case RegistryRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown registry kind %q", c.Registry.Kind))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", logging.FormatText, logging.FormatHuman, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// JSONSchema returns the JSON Schema of the configuration file.
func JSONSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		FieldNameTag:               "yaml",
		RequiredFromJSONSchemaTags: true,
	}
	s := r.Reflect(&Config{})
	s.Title = "schema-harvester service configuration"
	return json.MarshalIndent(s, "", "  ")
}

// kafkaFromEnv turns KAFKA_BOOTSTRAP_SERVERS-style variables into
// bootstrap.servers-style properties. Variables matching one of the
// excluded prefixes are skipped.
func kafkaFromEnv(environ []string, prefix string, exclude ...string) Properties {
	props := Properties{}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, prefix) {
			continue
		}
		if slices.ContainsFunc(exclude, func(p string) bool { return strings.HasPrefix(k, p) }) {
			continue
		}
		name := strings.TrimPrefix(k, prefix)
		if name == "" {
			continue
		}
		props[strings.ToLower(strings.ReplaceAll(name, "_", "."))] = v
	}
	return props
}

// merge copies src over dst and returns dst.
func merge(dst, src Properties) Properties {
	if dst == nil {
		dst = Properties{}
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// Keys returns the property names in sorted order.
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lookup(environ []string, key string) (string, bool) {
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v, true
		}
	}
	return "", false
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
