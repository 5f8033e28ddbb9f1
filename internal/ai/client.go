// Package ai phrases detected recurrence patterns as member-facing Korean
// suggestion text through an OpenAI-compatible endpoint.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/daheeyun/haruplan/internal/apperr"
	"github.com/daheeyun/haruplan/internal/suggestion"
)

const requestTimeout = 30 * time.Second

type Client struct {
	client *openai.Client
	model  string
}

func New(apiKey, baseURL, model string) *Client {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

const systemPrompt = `너는 일정 관리 서비스의 제안 문구 작성기야.
사용자의 반복 기록에서 발견한 패턴을 근거로, 반복 일정 등록을 권하는 한 문장을 작성해.

입력으로 항목 제목과 RFC 5545 RRULE이 주어져.
출력은 반드시 JSON 하나만: {"content": "제안 문구"}

규칙:
1. 문구는 한 문장, 60자 이내, 친근한 존댓말.
2. 반복 주기를 자연스러운 한국어로 풀어서 설명해 (예: "매주 월·수요일").
3. 제목은 그대로 인용하고, RRULE 원문은 절대 노출하지 마.`

type phraseResponse struct {
	Content string `json:"content"`
}

// PhraseSuggestion implements suggestion.Phraser. Transport failures are
// classified so the batch can tell retryable outages from bad output.
func (c *Client) PhraseSuggestion(ctx context.Context, title, rrule string, stability suggestion.StableType) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	user := fmt.Sprintf("제목: %s\nRRULE: %s\n패턴 안정도: %s", title, rrule, stability)
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.New(apperr.CodeAIParseFailure, "empty completion response")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var parsed phraseResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		return "", apperr.Wrap(apperr.CodeAIParseFailure, "malformed suggestion payload", err)
	}
	if parsed.Content == "" {
		return "", apperr.New(apperr.CodeAIParseFailure, "suggestion payload missing content")
	}
	return parsed.Content, nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.CodeAITimeout, "suggestion phrasing timed out", err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 &&
		apiErr.HTTPStatusCode != 429 {
		return apperr.Wrap(apperr.CodeAIParseFailure, "suggestion phrasing rejected", err)
	}
	return apperr.Wrap(apperr.CodeAIUnavailable, "suggestion phrasing unavailable", err)
}
