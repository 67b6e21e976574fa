package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"

	"mindpattern/internal/config"
	"mindpattern/internal/domain"
)

type Kafka struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafka(cfg config.QueueConfig) (*Kafka, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, err
	}

	return NewKafkaWithProducer(producer, cfg.Topic), nil
}

// NewKafkaWithProducer publishes through an existing producer.
func NewKafkaWithProducer(producer sarama.SyncProducer, topic string) *Kafka {
	return &Kafka{
		producer: producer,
		topic:    topic,
	}
}

func (k *Kafka) Publish(ctx context.Context, sub domain.Submission) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(sub)
	if err != nil {
		return err
	}

	_, _, err = k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(sub.ID),
		Value: sarama.ByteEncoder(data),
	})

	return err
}

func (k *Kafka) Close() error {
	return k.producer.Close()
}

const (
	handleAttempts = 3
	handleWait     = time.Second
)

type KafkaConsumer struct {
	group     sarama.ConsumerGroup
	topic     string
	handler   Handler
	retryWait time.Duration
}

func NewKafkaConsumer(cfg config.QueueConfig) (*KafkaConsumer, error) {
	sc := sarama.NewConfig()
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, err
	}

	return &KafkaConsumer{
		group:     group,
		topic:     cfg.Topic,
		retryWait: handleWait,
	}, nil
}

func (c *KafkaConsumer) Consume(ctx context.Context, handler Handler) error {
	c.handler = handler

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := c.group.Consume(ctx, []string{c.topic}, c); err != nil {
				return err
			}
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.group.Close()
}

func (c *KafkaConsumer) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (c *KafkaConsumer) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

func (c *KafkaConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var sub domain.Submission
		if err := json.Unmarshal(msg.Value, &sub); err != nil {
			// Acknowledge poison messages so the partition keeps moving.
			log.Printf("[ERROR] decode submission at offset %d: %v", msg.Offset, err)
			session.MarkMessage(msg, "")
			continue
		}

		// A submission that keeps failing ends the claim unmarked, so the
		// group resumes from it instead of committing past it.
		if err := c.handle(session.Context(), sub); err != nil {
			return fmt.Errorf("submission %s at offset %d: %w", sub.ID, msg.Offset, err)
		}

		session.MarkMessage(msg, "")
	}
	return nil
}

func (c *KafkaConsumer) handle(ctx context.Context, sub domain.Submission) error {
	var err error
	for attempt := range handleAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryWait << (attempt - 1)):
			}
		}

		if err = c.handler(ctx, sub); err == nil {
			return nil
		}
		log.Printf("[RETRY] %s attempt %d/%d: %v", sub.ID, attempt+1, handleAttempts, err)
	}
	return err
}
