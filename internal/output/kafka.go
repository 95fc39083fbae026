package output

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/chrisdamba/salescount/internal/models"
	"github.com/chrisdamba/salescount/internal/report"
	"github.com/chrisdamba/salescount/internal/utils"
)

const defaultTopic = "report_rows"

// KafkaOutput publishes one JSON message per report row, keyed by the row's
// persistence key. With tombstones on, every key the report could have but
// does not gets a nil value, so a compacted topic holds exactly the rows of
// the latest run of each location and date.
type KafkaOutput struct {
	producer   sarama.SyncProducer
	topic      string
	tombstones bool
}

func NewKafkaOutput(cfg models.KafkaConfig) (*KafkaOutput, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Retry.Backoff = 100 * time.Millisecond
	saramaConfig.Producer.Return.Successes = true // required by SyncProducer
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	saramaConfig.Net.DialTimeout = timeout
	saramaConfig.Net.ReadTimeout = timeout
	saramaConfig.Net.WriteTimeout = timeout

	brokerList := strings.Split(cfg.BrokerList, ",")
	producer, err := sarama.NewSyncProducer(brokerList, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sarama producer: %w", err)
	}

	utils.Log.WithField("brokers", brokerList).Info("kafka producer created")
	return NewKafkaOutputWithProducer(producer, cfg.Topic).WithTombstones(cfg.Tombstones), nil
}

func NewKafkaOutputWithProducer(producer sarama.SyncProducer, topic string) *KafkaOutput {
	if topic == "" {
		topic = defaultTopic
	}
	return &KafkaOutput{producer: producer, topic: topic}
}

func (k *KafkaOutput) WithTombstones(on bool) *KafkaOutput {
	k.tombstones = on
	return k
}

func (k *KafkaOutput) WriteReport(ctx context.Context, rep *models.Report) error {
	if k.producer == nil {
		return fmt.Errorf("kafka producer is closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rows := report.Grouped(rep.Rows)
	if len(rows) == 0 && !k.tombstones {
		return nil
	}
	msgs := make([]*sarama.ProducerMessage, 0, len(rows))
	live := make(map[string]bool, len(rows))
	for _, row := range rows {
		value, err := rep.MarshalRow(row)
		if err != nil {
			return err
		}
		key := rep.RowKey(row)
		live[key] = true
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: k.topic,
			Key:   sarama.StringEncoder(key),
			Value: sarama.ByteEncoder(value),
		})
	}
	if k.tombstones {
		for _, key := range rep.PossibleRowKeys() {
			if !live[key] {
				msgs = append(msgs, &sarama.ProducerMessage{Topic: k.topic, Key: sarama.StringEncoder(key)})
			}
		}
	}

	if err := k.producer.SendMessages(msgs); err != nil {
		utils.Log.WithError(err).WithField("topic", k.topic).Error("failed to publish report rows")
		return fmt.Errorf("failed to publish %d rows to %s: %w", len(msgs), k.topic, err)
	}
	return nil
}

func (k *KafkaOutput) Close() error {
	if k.producer == nil {
		return nil
	}
	err := k.producer.Close()
	k.producer = nil
	return err
}
