package dto

import "toolhub/session"

// SubmitMessageRequestDTO 의 text 검증(빈 문자열, 길이)은 세션이 담당한다.
type SubmitMessageRequestDTO struct {
	Text string `json:"text"`
}

type SessionResponseDTO struct {
	Session session.Snapshot `json:"session"`
}

type SponsorClickResponseDTO struct {
	LinkURL string `json:"link_url"`
}
