package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"MintRelay/internal/llm"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModelName = "gpt-4o-mini"
	defaultTimeout   = 60 * time.Second
)

// Config 描述了调用 OpenAI Chat Completions API 所需的信息。
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client 通过 HTTP 调用 OpenAI 生成回复文案。
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient 根据配置创建 OpenAI 客户端。
func NewClient(cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供 OpenAI API Key")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModelName
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Phrase 调用 OpenAI 为指定处理结果生成一句回复。
func (c *Client) Phrase(ctx context.Context, req llm.Request) (string, error) {
	payload, err := c.buildPayload(req)
	if err != nil {
		return "", err
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("构建 OpenAI 请求失败: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("请求 OpenAI 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("OpenAI 返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("解析 OpenAI 响应失败: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("OpenAI 响应中没有有效的 choices")
	}

	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("OpenAI 响应内容为空")
	}
	return content, nil
}

func (c *Client) buildPayload(req llm.Request) ([]byte, error) {
	type message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	messages := []message{
		{
			Role:    "system",
			Content: systemPrompt,
		},
		{
			Role:    "user",
			Content: buildUserPrompt(req),
		},
	}

	body := map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": 0.7,
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("序列化 OpenAI 请求失败: %w", err)
	}
	return encoded, nil
}

const systemPrompt = "" +
	"You write short, friendly replies for an NFT minting bot on social media. " +
	"Respond with the reply text only, no quotes and no markdown. " +
	"Keep it under 240 characters so a mention prefix still fits."

func buildUserPrompt(req llm.Request) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Outcome: %s\n", req.Outcome))
	if handle := strings.TrimSpace(req.Handle); handle != "" {
		builder.WriteString(fmt.Sprintf("User handle: @%s\n", handle))
	}
	if name := strings.TrimSpace(req.TokenName); name != "" {
		builder.WriteString(fmt.Sprintf("Token name: %s\n", name))
	}
	if link := strings.TrimSpace(req.TxLink); link != "" {
		builder.WriteString(fmt.Sprintf("Transaction link: %s\n", link))
	}
	if target := strings.TrimSpace(req.Target); target != "" {
		builder.WriteString(fmt.Sprintf("Requested address or name: %s\n", target))
	}

	switch req.Outcome {
	case llm.OutcomeMinted:
		builder.WriteString("Write a celebratory reply announcing the mint. Include the transaction link verbatim.")
	case llm.OutcomeZeroBalance:
		builder.WriteString("Write a gently humorous reply explaining the wallet has no funds so no mint happened. Quote the requested address verbatim.")
	case llm.OutcomeDuplicate:
		builder.WriteString("Write a polite reply explaining this user or address has already received a mint.")
	case llm.OutcomeInvalidTarget:
		builder.WriteString("Write a helpful reply explaining the address or name could not be resolved. Quote the requested input verbatim.")
	case llm.OutcomeLowReputation:
		builder.WriteString("Write a neutral reply explaining the request did not meet the eligibility bar.")
	default:
		builder.WriteString("Write an apologetic reply explaining the mint could not be completed this time.")
	}
	return builder.String()
}

var _ llm.Phraser = (*Client)(nil)
