package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"toolhub/internal/logger"
)

// KafkaEventBus 는 confluent-kafka-go Producer 로 구현한 Publisher 입니다.
type KafkaEventBus struct {
	Producer *kafka.Producer
	Brokers  string
}

// NewKafkaEventBus 는 Kafka Producer 를 초기화합니다.
func NewKafkaEventBus(brokers string) (*KafkaEventBus, error) {
	producerCfg := &kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "all",
		"retries":           5,
	}
	if maxBytes := messageMaxBytesFromEnv(); maxBytes > 0 {
		(*producerCfg)["message.max.bytes"] = maxBytes
	}

	p, err := kafka.NewProducer(producerCfg)
	if err != nil {
		return nil, fmt.Errorf("kafka Producer 생성 실패: %w", err)
	}

	// 전달 보고서 처리
	go func() {
		for e := range p.Events() {
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					logger.Log.Errorf("메시지 전달 실패 %v: %v", ev.TopicPartition, ev.TopicPartition.Error)
				}
			case kafka.Error:
				logger.Log.Errorf("Kafka 오류: %v", ev)
			}
		}
	}()

	return &KafkaEventBus{Producer: p, Brokers: brokers}, nil
}

// Close 는 남은 메시지를 최대 5초 동안 플러시하고 Producer 를 종료합니다.
func (k *KafkaEventBus) Close() {
	if k.Producer == nil {
		return
	}
	if remaining := k.Producer.Flush(5000); remaining > 0 {
		logger.Log.Warnf("플러시 후에도 %d개의 메시지가 남아 있습니다.", remaining)
	}
	k.Producer.Close()
	logger.Log.Info("Kafka Producer 종료.")
}

// Publish 는 지정된 토픽에 이벤트를 발행하고 전달 결과를 기다립니다.
// 세션 ID 를 키로 사용해 같은 세션의 이벤트가 같은 파티션에 들어가게 한다.
func (k *KafkaEventBus) Publish(ctx context.Context, topic Topic, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("이벤트 마샬링 실패: %w", err)
	}

	name := topic.Name()
	deliveryChan := make(chan kafka.Event, 1)

	err = k.Producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &name, Partition: kafka.PartitionAny},
		Value:          data,
		Key:            []byte(partitionKey(event)),
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("메시지 발행 실패: %w", err)
	}

	select {
	case ev := <-deliveryChan:
		m, ok := ev.(*kafka.Message)
		if ok && m.TopicPartition.Error != nil {
			return fmt.Errorf("메시지 전달 실패: %w", m.TopicPartition.Error)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func partitionKey(event Event) string {
	var keyed struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(event.Payload, &keyed); err == nil && keyed.SessionID != "" {
		return keyed.SessionID
	}
	return event.ID
}

// EnsureTopic 은 토픽을 생성한다. 이미 존재하면 성공으로 간주한다.
func EnsureTopic(brokers string, topic Topic, partitions int) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": brokers})
	if err != nil {
		return fmt.Errorf("AdminClient 생성 실패: %w", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             topic.Name(),
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	}})
	if err != nil {
		return fmt.Errorf("토픽 생성 요청 실패: %w", err)
	}
	for _, r := range results {
		code := r.Error.Code()
		if code != kafka.ErrNoError && code != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("토픽 %s 생성 실패: %v", r.Topic, r.Error)
		}
	}
	return nil
}

func messageMaxBytesFromEnv() int {
	raw := os.Getenv("KAFKA_MESSAGE_MAX_BYTES")
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		logger.Log.Warnf("KAFKA_MESSAGE_MAX_BYTES 환경변수 파싱 실패: %v. 기본값 사용.", err)
		return 0
	}
	if v < 1 {
		return 1
	}
	return v
}
