package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"toolhub/internal/logger"
	"toolhub/internal/trace"
)

const maxBodyLog = 1024

// RequestTrace 는 모든 inbound 요청에 Request ID 와 Span ID 를 보장하고,
// 컨텍스트와 응답 헤더에 저장한 뒤 완료 로그에 포함시킨다.
// 세션 작업은 이 컨텍스트에서 trace 정보만 떼어 가져가므로 (trace.Detach)
// 채팅 턴 로그도 같은 request_id 로 묶인다.
func RequestTrace() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		req := c.Request

		requestID := req.Header.Get(trace.HeaderRequestID)
		if requestID == "" {
			requestID = trace.GenerateID()
		}

		ctx := trace.WithRequestAndSpan(req.Context(), requestID, 0)
		c.Request = req.WithContext(ctx)
		req = c.Request

		span := trace.CurrentSpanID(ctx)
		c.Writer.Header().Set(trace.HeaderRequestID, requestID)
		c.Writer.Header().Set(trace.HeaderSpanID, span)

		bodySnippet := captureBody(c)

		c.Next()

		fields := logger.Fields{
			"method":     req.Method,
			"path":       req.URL.Path,
			"route":      c.FullPath(),
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
			"request_id": requestID,
			"span_id":    trace.CurrentSpanID(c.Request.Context()),
		}
		if sid := c.Param("sid"); sid != "" {
			fields["session_id"] = sid
		}
		if bodySnippet != "" {
			fields["body"] = bodySnippet
		}
		logger.InfoWithFields("completed request", fields)
	}
}

// captureBody 는 로깅용 바디 스니펫을 읽고, 핸들러가 다시 읽을 수 있도록 Body 를 복원한다.
func captureBody(c *gin.Context) string {
	req := c.Request
	if req.Body == nil || req.ContentLength == 0 {
		return ""
	}
	switch req.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return ""
	}

	bodyBytes, err := io.ReadAll(req.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
	if len(bodyBytes) > maxBodyLog {
		bodyBytes = bodyBytes[:maxBodyLog]
	}
	return string(bodyBytes)
}
