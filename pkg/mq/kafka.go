// Package mq 提供 Kafka producer/consumer 通用实现，支持异步写入与死信队列
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/wyfcoding/smartexecution/pkg/config"
	"github.com/wyfcoding/smartexecution/pkg/logger"
)

// MessageWriter 对 kafka.Writer 的最小抽象，便于测试替换
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer Kafka 生产者
type KafkaProducer struct {
	writer MessageWriter
}

// NewProducer 创建 Kafka 生产者。async 为 true 时写入不阻塞调用方，失败只记录日志
func NewProducer(cfg config.KafkaConfig, async bool) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		AllowAutoTopicCreation: true,
		Compression:            kafka.Gzip,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            cfg.MaxRetries,
		WriteBackoffMin:        time.Duration(cfg.RetryBackoff) * time.Millisecond,
		WriteBackoffMax:        time.Duration(cfg.RetryBackoff*10) * time.Millisecond,
		Async:                  async,
	}
	if async {
		writer.Completion = func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error(context.Background(), "Async Kafka write failed", "count", len(messages), "error", err)
			}
		}
	}

	logger.Info(context.Background(), "Kafka producer created successfully", "brokers", cfg.Brokers, "async", async)
	return &KafkaProducer{writer: writer}
}

// NewProducerWithWriter 使用自定义 writer 创建生产者
func NewProducerWithWriter(w MessageWriter) *KafkaProducer {
	return &KafkaProducer{writer: w}
}

// SendMessage 发送单条 JSON 消息
func (kp *KafkaProducer) SendMessage(ctx context.Context, topic string, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	msg := kafka.Message{Topic: topic, Key: []byte(key), Value: data}
	if err := kp.writer.WriteMessages(ctx, msg); err != nil {
		logger.Error(ctx, "Failed to send Kafka message", "topic", topic, "key", key, "error", err)
		return err
	}

	logger.Debug(ctx, "Kafka message sent", "topic", topic, "key", key)
	return nil
}

// Close 关闭生产者
func (kp *KafkaProducer) Close() error {
	return kp.writer.Close()
}

// Message Kafka 消息结构
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       string
	Value     []byte
	Time      time.Time
}

// UnmarshalPayload 将消息值解析为 JSON
func (m *Message) UnmarshalPayload(dest any) error {
	return json.Unmarshal(m.Value, dest)
}

// Handler 消费处理函数，返回错误时消息进入死信队列
type Handler func(ctx context.Context, msg *Message) error

// KafkaConsumer Kafka 消费者
type KafkaConsumer struct {
	reader *kafka.Reader
	topic  string
	dlq    *DeadLetterQueue
}

// NewConsumer 创建 Kafka 消费者
func NewConsumer(cfg config.KafkaConfig, topic string, dlq *DeadLetterQueue) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          topic,
		GroupID:        cfg.GroupID,
		SessionTimeout: time.Duration(cfg.SessionTimeout) * time.Second,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
		MaxBytes:       10e6, // 10MB
	})

	logger.Info(context.Background(), "Kafka consumer created successfully",
		"brokers", cfg.Brokers,
		"topic", topic,
		"group_id", cfg.GroupID,
	)
	return &KafkaConsumer{reader: reader, topic: topic, dlq: dlq}
}

// Run 循环读取消息直到 ctx 结束
func (kc *KafkaConsumer) Run(ctx context.Context, handle Handler) error {
	for {
		raw, err := kc.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			logger.Error(ctx, "Failed to read Kafka message", "topic", kc.topic, "error", err)
			return err
		}

		msg := &Message{
			Topic:     raw.Topic,
			Partition: raw.Partition,
			Offset:    raw.Offset,
			Key:       string(raw.Key),
			Value:     raw.Value,
			Time:      raw.Time,
		}
		if err := handle(ctx, msg); err != nil {
			logger.Warn(ctx, "Kafka message handling failed", "topic", msg.Topic, "offset", msg.Offset, "error", err)
			if kc.dlq != nil {
				_ = kc.dlq.Send(ctx, msg, "handler_error", err)
			}
		}
	}
}

// Close 关闭消费者
func (kc *KafkaConsumer) Close() error {
	return kc.reader.Close()
}

// DeadLetterQueue 死信队列处理
type DeadLetterQueue struct {
	producer *KafkaProducer
	topic    string
}

// NewDeadLetterQueue 创建死信队列
func NewDeadLetterQueue(producer *KafkaProducer, topic string) *DeadLetterQueue {
	return &DeadLetterQueue{producer: producer, topic: topic}
}

// Send 发送消息到死信队列
func (dlq *DeadLetterQueue) Send(ctx context.Context, original *Message, reason string, err error) error {
	deadLetter := map[string]any{
		"original_topic":    original.Topic,
		"original_key":      original.Key,
		"original_value":    string(original.Value),
		"original_offset":   original.Offset,
		"original_time":     original.Time,
		"failure_reason":    reason,
		"failure_error":     err.Error(),
		"failure_timestamp": time.Now(),
	}
	return dlq.producer.SendMessage(ctx, dlq.topic, original.Key, deadLetter)
}
