package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Topic 은 이벤트를 발행할 Kafka 토픽 이름이다.
type Topic struct {
	name string
}

func NewTopic(name string) Topic {
	return Topic{name: name}
}

func (t Topic) Name() string {
	return t.name
}

// Event 는 Kafka 메시지의 페이로드로 사용되는 구조체입니다.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher 는 이벤트 발행만 추상화한다. 채팅 세션 쪽은 구독하지 않는다.
type Publisher interface {
	Publish(ctx context.Context, topic Topic, event Event) error
	Close()
}

// NewJSONEvent 는 payload 를 JSON 으로 인코딩하여 Event 를 구성한다.
// id 가 빈 문자열이면 UUIDv7 을 생성한다.
func NewJSONEvent(id, eventType string, payload any) (Event, error) {
	if id == "" {
		v7, err := uuid.NewV7()
		if err != nil {
			return Event{}, fmt.Errorf("이벤트 ID 생성 실패: %w", err)
		}
		id = v7.String()
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("payload marshal 실패: %w", err)
	}
	return Event{
		ID:         id,
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    b,
	}, nil
}

// DecodeJSON 은 Event.Payload 를 제네릭 타입으로 언마샬합니다.
func DecodeJSON[T any](evt Event) (T, error) {
	var out T
	if err := json.Unmarshal(evt.Payload, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("payload unmarshal 실패: %w", err)
	}
	return out, nil
}

// Noop 은 브로커가 설정되지 않았을 때 사용하는 Publisher 이다.
type Noop struct{}

func (Noop) Publish(context.Context, Topic, Event) error { return nil }
func (Noop) Close()                                     {}
