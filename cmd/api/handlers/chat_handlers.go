package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"toolhub/cmd/api/auth"
	"toolhub/cmd/api/dto"
	"toolhub/cmd/api/services"
)

// CreateSessionHandler godoc
// @Summary      채팅 세션 생성
// @Description  도구의 환영 메시지로 시작하는 새 세션을 연다. 토큰이 있으면 로그인 방문자로 취급한다.
// @Tags         chat
// @Produce      json
// @Param        tool_id  path      string  true  "tool ObjectID or slug"
// @Success      201      {object}  dto.SessionResponseDTO
// @Failure      401      {object}  dto.ErrorResponseDTO
// @Failure      404      {object}  dto.ErrorResponseDTO
// @Router       /tools/{tool_id}/chat/sessions [post]
func CreateSessionHandler(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		visitor := auth.VisitorFrom(c)
		snap, chatErr := svc.OpenSession(c.Request.Context(), c.Param("tool_id"), visitor.Authenticated)
		if chatErr != nil {
			c.JSON(chatErr.StatusCode, dto.ErrorResponseDTO{Error: chatErr.ErrorCode})
			return
		}
		c.JSON(http.StatusCreated, dto.SessionResponseDTO{Session: snap})
	}
}

// GetSessionHandler godoc
// @Summary      세션 스냅샷 조회
// @Tags         chat
// @Produce      json
// @Param        sid  path      string  true  "session id"
// @Success      200  {object}  dto.SessionResponseDTO
// @Failure      404  {object}  dto.ErrorResponseDTO
// @Router       /chat/sessions/{sid} [get]
func GetSessionHandler(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, chatErr := svc.Snapshot(c.Param("sid"))
		if chatErr != nil {
			c.JSON(chatErr.StatusCode, dto.ErrorResponseDTO{Error: chatErr.ErrorCode})
			return
		}
		c.JSON(http.StatusOK, dto.SessionResponseDTO{Session: snap})
	}
}

// SessionEventsHandler godoc
// @Summary      세션 변경 스트림 (SSE)
// @Description  현재 스냅샷을 먼저 보내고, 이후 변경될 때마다 최신 스냅샷을 snapshot 이벤트로 보낸다.
// @Tags         chat
// @Produce      text/event-stream
// @Param        sid  path  string  true  "session id"
// @Failure      404  {object}  dto.ErrorResponseDTO
// @Router       /chat/sessions/{sid}/events [get]
func SessionEventsHandler(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 클라이언트 연결이 끊기면 요청 컨텍스트가 끝나고 채널도 닫힌다.
		snapshots, chatErr := svc.Watch(c.Request.Context(), c.Param("sid"))
		if chatErr != nil {
			c.JSON(chatErr.StatusCode, dto.ErrorResponseDTO{Error: chatErr.ErrorCode})
			return
		}

		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Stream(func(w io.Writer) bool {
			snap, ok := <-snapshots
			if !ok {
				return false
			}
			c.SSEvent("snapshot", snap)
			return true
		})
	}
}

// SubmitMessageHandler godoc
// @Summary      메시지 전송
// @Description  유휴 상태의 세션에서만 새 턴을 시작한다. 응답은 스트림이나 스냅샷 조회로 확인한다.
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        sid   path      string                       true  "session id"
// @Param        body  body      dto.SubmitMessageRequestDTO  true  "message"
// @Success      202   {object}  dto.SessionResponseDTO
// @Failure      400   {object}  dto.ErrorResponseDTO
// @Failure      404   {object}  dto.ErrorResponseDTO
// @Failure      409   {object}  dto.ErrorResponseDTO  "이전 턴 진행 중"
// @Router       /chat/sessions/{sid}/messages [post]
func SubmitMessageHandler(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.SubmitMessageRequestDTO
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponseDTO{Error: "invalid_request"})
			return
		}

		snap, chatErr := svc.Submit(c.Request.Context(), c.Param("sid"), req.Text)
		if chatErr != nil {
			c.JSON(chatErr.StatusCode, dto.ErrorResponseDTO{Error: chatErr.ErrorCode})
			return
		}
		c.JSON(http.StatusAccepted, dto.SessionResponseDTO{Session: snap})
	}
}

// StopTypingHandler godoc
// @Summary      타이핑 중단
// @Description  진행 중인 타이핑을 멈추고 전체 답변을 바로 보여준다.
// @Tags         chat
// @Produce      json
// @Param        sid  path      string  true  "session id"
// @Success      200  {object}  dto.SessionResponseDTO
// @Failure      404  {object}  dto.ErrorResponseDTO
// @Router       /chat/sessions/{sid}/stop [post]
func StopTypingHandler(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, chatErr := svc.Stop(c.Param("sid"))
		if chatErr != nil {
			c.JSON(chatErr.StatusCode, dto.ErrorResponseDTO{Error: chatErr.ErrorCode})
			return
		}
		c.JSON(http.StatusOK, dto.SessionResponseDTO{Session: snap})
	}
}

// ResetSessionHandler godoc
// @Summary      세션 초기화
// @Tags         chat
// @Produce      json
// @Param        sid  path      string  true  "session id"
// @Success      200  {object}  dto.SessionResponseDTO
// @Failure      404  {object}  dto.ErrorResponseDTO
// @Router       /chat/sessions/{sid}/reset [post]
func ResetSessionHandler(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, chatErr := svc.Reset(c.Param("sid"))
		if chatErr != nil {
			c.JSON(chatErr.StatusCode, dto.ErrorResponseDTO{Error: chatErr.ErrorCode})
			return
		}
		c.JSON(http.StatusOK, dto.SessionResponseDTO{Session: snap})
	}
}

// SponsorClickHandler godoc
// @Summary      스폰서 링크 클릭
// @Description  카운트다운이 끝난 스폰서 메시지의 링크를 돌려주고 클릭을 기록한다.
// @Tags         chat
// @Produce      json
// @Param        sid  path      string  true  "session id"
// @Param        mid  path      string  true  "sponsor message id"
// @Success      200  {object}  dto.SponsorClickResponseDTO
// @Failure      404  {object}  dto.ErrorResponseDTO
// @Failure      409  {object}  dto.ErrorResponseDTO  "카운트다운 진행 중"
// @Router       /chat/sessions/{sid}/sponsors/{mid}/click [post]
func SponsorClickHandler(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		link, chatErr := svc.ClickSponsor(c.Request.Context(), c.Param("sid"), c.Param("mid"))
		if chatErr != nil {
			c.JSON(chatErr.StatusCode, dto.ErrorResponseDTO{Error: chatErr.ErrorCode})
			return
		}
		c.JSON(http.StatusOK, dto.SponsorClickResponseDTO{LinkURL: link})
	}
}

// CloseSessionHandler godoc
// @Summary      세션 종료
// @Tags         chat
// @Produce      json
// @Param        sid  path      string  true  "session id"
// @Success      200  {object}  dto.MessageResponseDTO
// @Failure      404  {object}  dto.ErrorResponseDTO
// @Router       /chat/sessions/{sid} [delete]
func CloseSessionHandler(svc *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if chatErr := svc.Close(c.Param("sid")); chatErr != nil {
			c.JSON(chatErr.StatusCode, dto.ErrorResponseDTO{Error: chatErr.ErrorCode})
			return
		}
		c.JSON(http.StatusOK, dto.MessageResponseDTO{Message: "session closed"})
	}
}
