package handlers

import (
	"context"
	"fmt"
	"time"

	"toolhub/activity"
	"toolhub/internal/eventbus"
	"toolhub/internal/logger"
	"toolhub/repositories"
)

// StatsRecorder 는 일별 카운터 저장소다.
type StatsRecorder interface {
	IncrementDaily(ctx context.Context, subject, id, field string, at time.Time) error
}

// ActivityHandlers 는 채팅 활동 이벤트를 도구/스폰서별 일간 집계로 바꾼다.
// API 서버는 발행만 하고, DB 집계는 Aggregate 가 담당한다.
type ActivityHandlers struct {
	stats StatsRecorder
}

func NewActivityHandlers(stats StatsRecorder) *ActivityHandlers {
	return &ActivityHandlers{stats: stats}
}

// Handle 은 eventbus.EventHandler 시그니처를 따른다.
func (h *ActivityHandlers) Handle(ctx context.Context, evt eventbus.Event) error {
	payload, err := eventbus.DecodeJSON[activity.Event](evt)
	if err != nil {
		return err
	}

	var subject, id, field string
	switch activity.Kind(evt.Type) {
	case activity.KindTurnOpened:
		subject, id, field = repositories.SubjectTool, payload.ToolID, "sessions"
	case activity.KindTurnSent:
		subject, id, field = repositories.SubjectTool, payload.ToolID, "turns"
	case activity.KindSponsorShown:
		subject, id, field = repositories.SubjectSponsor, payload.SponsorID, "impressions"
	case activity.KindSponsorClicked:
		subject, id, field = repositories.SubjectSponsor, payload.SponsorID, "clicks"
	default:
		// 집계 대상이 아닌 이벤트는 무시 (커밋)
		return nil
	}
	if id == "" {
		logger.DebugWithFields("activity event without subject id", logger.Fields{
			"event_id":   evt.ID,
			"event_type": evt.Type,
		})
		return nil
	}

	if err := h.stats.IncrementDaily(ctx, subject, id, field, evt.OccurredAt); err != nil {
		return fmt.Errorf("aggregate %s: %w", evt.Type, err)
	}
	return nil
}
