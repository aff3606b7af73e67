package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"toolhub/internal/logger"
)

// EventHandler 는 구독한 이벤트 하나를 처리한다.
type EventHandler func(ctx context.Context, evt Event) error

// Subscribe 는 토픽을 구독하고 ctx 가 끝날 때까지 handler 를 실행합니다.
// 분석 이벤트는 재처리 가치가 낮으므로 핸들러 실패는 로그만 남기고 커밋한다.
func (k *KafkaEventBus) Subscribe(ctx context.Context, groupID string, topic Topic, handler EventHandler) error {
	consumerCfg := &kafka.ConfigMap{
		"bootstrap.servers":             k.Brokers,
		"group.id":                      groupID,
		"auto.offset.reset":             "earliest",
		"enable.auto.commit":            false,
		"partition.assignment.strategy": "range",
	}
	if maxPoll := maxPollIntervalMsFromEnv(); maxPoll > 0 {
		(*consumerCfg)["max.poll.interval.ms"] = maxPoll
	}

	c, err := kafka.NewConsumer(consumerCfg)
	if err != nil {
		return fmt.Errorf("kafka Consumer 생성 실패: %w", err)
	}
	defer c.Close()

	if err := c.SubscribeTopics([]string{topic.Name()}, nil); err != nil {
		return fmt.Errorf("토픽 구독 실패 %s: %w", topic.Name(), err)
	}
	logger.Log.Infof("컨슈머 (%s) 시작됨. 구독 토픽: %s", groupID, topic.Name())

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("컨슈머 종료 중.")
			return ctx.Err()
		default:
		}

		msg, err := c.ReadMessage(100 * time.Millisecond)
		if err != nil {
			if kerr, ok := err.(kafka.Error); ok && kerr.Code() == kafka.ErrTimedOut {
				continue // 타임아웃은 정상적인 상황입니다.
			}
			logger.Log.Warnf("메시지 읽기 실패: %v", err)
			continue
		}

		var evt Event
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Log.Errorf("토픽 %s의 이벤트 페이로드 오류: %v. 메시지를 건너뛰고 커밋합니다.", topic.Name(), err)
		} else if err := handler(ctx, evt); err != nil {
			logger.WarnWithFields("이벤트 처리 실패", logger.Fields{
				"event_id":   evt.ID,
				"event_type": evt.Type,
				"error":      err.Error(),
			})
		}

		if _, err := c.CommitMessage(msg); err != nil {
			logger.Log.Errorf("오프셋 커밋 오류: %v", err)
		}
	}
}

// maxPollIntervalMsFromEnv 는 KAFKA_MAX_POLL_INTERVAL_MS 를 읽는다. 비어 있거나
// 잘못된 값이면 0 을 반환하여 라이브러리 기본값을 사용하게 한다.
func maxPollIntervalMsFromEnv() int {
	raw := strings.TrimSpace(os.Getenv("KAFKA_MAX_POLL_INTERVAL_MS"))
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		logger.Log.Warnf("KAFKA_MAX_POLL_INTERVAL_MS 값이 올바르지 않습니다 (%q). 기본값 사용.", raw)
		return 0
	}
	return value
}
