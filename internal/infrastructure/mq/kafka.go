package mq

import (
	"fmt"
	"log"

	"feeledger/internal/config"

	"github.com/IBM/sarama"
)

// Producer 对 sarama.SyncProducer 的简单包装，供 outbox 投递使用
type Producer struct {
	producer sarama.SyncProducer
}

func NewProducer(producer sarama.SyncProducer) *Producer {
	return &Producer{producer: producer}
}

// ProducerConfig 生产者配置：全副本确认 + 重试
func ProducerConfig() *sarama.Config {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true
	return kafkaConfig
}

// InitKafka 创建 Kafka 生产者，失败直接退出
func InitKafka(cfg *config.KafkaConfig) *Producer {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, ProducerConfig())
	if err != nil {
		log.Fatalf("创建 Kafka 生产者失败: %v", err)
	}

	log.Println("Kafka 生产者创建成功")
	return NewProducer(producer)
}

// SendMessage 以 key 分区发送，同一交易的事件有序
func (p *Producer) SendMessage(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("发送消息失败, topic=%s, key=%s: %w", topic, key, err)
	}
	log.Printf("[Kafka] 消息已发送, topic=%s, key=%s, partition=%d, offset=%d", topic, key, partition, offset)
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
