package stream

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/usestring/schema-harvester/internal/config"
)

// Settings are kafka-go client settings translated from librdkafka-style
// properties.
type Settings struct {
	Brokers     []string
	GroupID     string
	ClientID    string
	StartOffset int64
	Compression compress.Compression
	Dialer      *kafka.Dialer
	// Ignored lists the properties that have no kafka-go equivalent.
	Ignored []string
}

// ParseSettings translates props. Unknown properties are collected in
// Settings.Ignored rather than rejected.
func ParseSettings(props config.Properties) (Settings, error) {
	s := Settings{StartOffset: kafka.FirstOffset}

	protocol, mechanism := "plaintext", "PLAIN"
	var username, password, caFile, certFile, keyFile string
	verify := true
	dialTimeout := 10 * time.Second

	for _, name := range props.Keys() {
		value := props[name]
		switch name {
		case "bootstrap.servers", "metadata.broker.list":
			for _, b := range strings.Split(value, ",") {
				if b = strings.TrimSpace(b); b != "" {
					s.Brokers = append(s.Brokers, b)
				}
			}
		case "group.id":
			s.GroupID = value
		case "client.id":
			s.ClientID = value
		case "security.protocol":
			protocol = strings.ToLower(value)
		case "sasl.mechanism", "sasl.mechanisms":
			mechanism = strings.ToUpper(value)
		case "sasl.username":
			username = value
		case "sasl.password":
			password = value
		case "ssl.ca.location":
			caFile = value
		case "ssl.certificate.location":
			certFile = value
		case "ssl.key.location":
			keyFile = value
		case "enable.ssl.certificate.verification":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return Settings{}, fmt.Errorf("property %s: %w", name, err)
			}
			verify = b
		case "socket.connection.setup.timeout.ms":
			ms, err := strconv.Atoi(value)
			if err != nil {
				return Settings{}, fmt.Errorf("property %s: %w", name, err)
			}
			dialTimeout = time.Duration(ms) * time.Millisecond
		case "compression.type", "compression.codec":
			codec, err := parseCompression(value)
			if err != nil {
				return Settings{}, err
			}
			s.Compression = codec
		case "auto.offset.reset":
			switch strings.ToLower(value) {
			case "earliest", "smallest", "beginning":
				s.StartOffset = kafka.FirstOffset
			case "latest", "largest", "end":
				s.StartOffset = kafka.LastOffset
			default:
				return Settings{}, fmt.Errorf("property %s: unsupported value %q", name, value)
			}
		default:
			s.Ignored = append(s.Ignored, name)
		}
	}

	dialer := &kafka.Dialer{Timeout: dialTimeout, DualStack: true, ClientID: s.ClientID}
	switch protocol {
	case "plaintext":
	case "ssl", "sasl_ssl", "sasl_plaintext":
		if protocol != "sasl_plaintext" {
			tlsConfig, err := createTLSConfig(caFile, certFile, keyFile, verify)
			if err != nil {
				return Settings{}, err
			}
			dialer.TLS = tlsConfig
		}
		if strings.HasPrefix(protocol, "sasl_") {
			m, err := createSASLMechanism(mechanism, username, password)
			if err != nil {
				return Settings{}, err
			}
			dialer.SASLMechanism = m
		}
	default:
		return Settings{}, fmt.Errorf("unsupported security.protocol %q", protocol)
	}
	s.Dialer = dialer
	return s, nil
}

func parseCompression(value string) (compress.Compression, error) {
	switch strings.ToLower(value) {
	case "", "none":
		return 0, nil
	case "gzip":
		return compress.Gzip, nil
	case "snappy":
		return compress.Snappy, nil
	case "lz4":
		return compress.Lz4, nil
	case "zstd":
		return compress.Zstd, nil
	}
	return 0, fmt.Errorf("unsupported compression.type %q", value)
}

func createTLSConfig(caFile, certFile, keyFile string, verify bool) (*tls.Config, error) {
	tlsConfig := &tls.Config{InsecureSkipVerify: !verify}

	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA cert %s", caFile)
		}
		tlsConfig.RootCAs = pool
	}
	if certFile != "" && keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

func createSASLMechanism(mechanism, username, password string) (sasl.Mechanism, error) {
	switch mechanism {
	case "PLAIN":
		return plain.Mechanism{Username: username, Password: password}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, username, password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, username, password)
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", mechanism)
	}
}

func errorLogger(logger *slog.Logger, role string) kafka.LoggerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(msg string, args ...any) {
		logger.Error("kafka client error", "role", role, "error", fmt.Sprintf(msg, args...))
	}
}

// KafkaSource consumes the source topics as a member of a consumer group.
type KafkaSource struct {
	reader *kafka.Reader
}

// NewKafkaSource subscribes to topics. Offsets are committed explicitly.
func NewKafkaSource(s Settings, topics []string, logger *slog.Logger) (*KafkaSource, error) {
	if len(s.Brokers) == 0 {
		return nil, errors.New("kafka source: no brokers configured")
	}
	if s.GroupID == "" {
		return nil, errors.New("kafka source: group.id is required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        s.Brokers,
		GroupID:        s.GroupID,
		GroupTopics:    topics,
		Dialer:         s.Dialer,
		StartOffset:    s.StartOffset,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0,
		ErrorLogger:    errorLogger(logger, "source"),
	})
	return &KafkaSource{reader: reader}, nil
}

func (k *KafkaSource) Fetch(ctx context.Context) (Message, error) {
	m, err := k.reader.FetchMessage(ctx)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Time:      m.Time,
	}, nil
}

func (k *KafkaSource) Commit(ctx context.Context, msg Message) error {
	return k.reader.CommitMessages(ctx, kafka.Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
	})
}

func (k *KafkaSource) Close() error { return k.reader.Close() }

// KafkaSink publishes schemas to the sink topic.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates a synchronous writer for topic.
func NewKafkaSink(s Settings, topic string, logger *slog.Logger) (*KafkaSink, error) {
	if len(s.Brokers) == 0 {
		return nil, errors.New("kafka sink: no brokers configured")
	}
	transport := &kafka.Transport{
		DialTimeout: s.Dialer.Timeout,
		ClientID:    s.ClientID,
		TLS:         s.Dialer.TLS,
		SASL:        s.Dialer.SASLMechanism,
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(s.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  s.Compression,
		MaxAttempts:  1,
		BatchSize:    1,
		WriteTimeout: 10 * time.Second,
		Transport:    transport,
		ErrorLogger:  errorLogger(logger, "sink"),
	}
	return &KafkaSink{writer: writer}, nil
}

func (k *KafkaSink) Publish(ctx context.Context, key string, value []byte) error {
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value})
}

func (k *KafkaSink) Close() error { return k.writer.Close() }

// KafkaTopics lists the topics of a cluster.
type KafkaTopics struct {
	settings Settings
}

// NewKafkaTopics returns a TopicLister backed by the cluster metadata.
func NewKafkaTopics(s Settings) *KafkaTopics { return &KafkaTopics{settings: s} }

func (k *KafkaTopics) ListTopics(ctx context.Context) ([]string, error) {
	var lastErr error
	for _, broker := range k.settings.Brokers {
		conn, err := k.settings.Dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		partitions, err := conn.ReadPartitions()
		_ = conn.Close()
		if err != nil {
			lastErr = err
			continue
		}
		seen := map[string]bool{}
		var topics []string
		for _, p := range partitions {
			if !seen[p.Topic] {
				seen[p.Topic] = true
				topics = append(topics, p.Topic)
			}
		}
		sort.Strings(topics)
		return topics, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no brokers configured")
	}
	return nil, fmt.Errorf("listing topics: %w", lastErr)
}
