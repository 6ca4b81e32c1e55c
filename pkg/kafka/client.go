// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"scope-chat-go/internal/config"
	"scope-chat-go/pkg/log"
	"scope-chat-go/pkg/tasks"
)

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.ImageArchiveTask) error
}

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// ProduceArchiveTask 发送一个图片归档任务到 Kafka。
func ProduceArchiveTask(task tasks.ImageArchiveTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}

	return producer.WriteMessages(context.Background(),
		kafka.Message{
			Value: taskBytes,
		},
	)
}

// StartConsumer 启动一个 Kafka 消费者来处理图片归档任务。
func StartConsumer(cfg config.KafkaConfig, processor TaskProcessor) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  "scope-chat-go-consumer",
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.ReadMessage(context.Background())
		if err != nil {
			log.Errorf("读取 Kafka 消息失败: %v", err)
			time.Sleep(time.Second)
			continue
		}

		var task tasks.ImageArchiveTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("解析归档任务失败: %v", err)
			continue
		}

		// 单条任务失败只记录日志，不中断消费循环，也不做重试
		if err := processor.Process(context.Background(), task); err != nil {
			log.Errorf("处理归档任务失败, session=%s, err=%v", task.SessionID, err)
		}
	}
}
