package report

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	config "github.com/thirdweb-dev/txconflict/configs"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

const DEFAULT_KAFKA_TOPIC = "txconflict.chain_reports"

type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type PublishableMessage struct {
	Data        ChainReport `json:"data"`
	Status      string      `json:"status"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// KafkaSink publishes one record per chain, keyed by chain name.
type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaClient(ctx context.Context, cfg config.ReportKafkaConfig) (*kgo.Client, error) {
	if cfg.Brokers == "" {
		return nil, fmt.Errorf("no Kafka brokers configured")
	}
	brokers := strings.Split(cfg.Brokers, ",")
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ClientID("txconflict"),
		kgo.MetadataMaxAge(60 * time.Second),
		kgo.DialTimeout(10 * time.Second),
	}

	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, kgo.SASL(plain.Auth{
			User: cfg.Username,
			Pass: cfg.Password,
		}.AsMechanism()))
		tlsDialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: 10 * time.Second}}
		opts = append(opts, kgo.Dialer(tlsDialer.DialContext))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %v", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Kafka: %v", err)
	}
	return client, nil
}

func NewKafkaSink(producer Producer, topic string) *KafkaSink {
	if topic == "" {
		topic = DEFAULT_KAFKA_TOPIC
	}
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Name() string {
	return "kafka"
}

func (s *KafkaSink) Publish(ctx context.Context, report Report) error {
	records := make([]*kgo.Record, 0, len(report.Chains))
	for _, chain := range report.Chains {
		status := "completed"
		switch {
		case chain.Error != "":
			status = "failed"
		case chain.Interrupted:
			status = "interrupted"
		}
		value, err := json.Marshal(PublishableMessage{Data: chain, Status: status, GeneratedAt: report.GeneratedAt})
		if err != nil {
			return fmt.Errorf("failed to marshal chain report: %v", err)
		}
		records = append(records, &kgo.Record{
			Topic: s.topic,
			Key:   []byte(chain.Chain),
			Value: value,
		})
	}
	if len(records) == 0 {
		return nil
	}

	if err := s.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("failed to publish chain reports to Kafka: %w", err)
	}
	log.Debug().Str("topic", s.topic).Int("records", len(records)).Msg("Published chain reports")
	return nil
}
