package reputation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Config 描述了调用信誉评分服务所需的信息。
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client 通过 HTTP 查询地址的信誉评分。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 根据配置创建评分客户端。
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("未配置信誉评分服务地址")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// scoreResponse 对应评分接口的响应体。
type scoreResponse struct {
	Score    *int           `json:"score"`
	Metadata map[string]int `json:"metadata"`
}

// Score 查询指定地址的信誉评分。
func (c *Client) Score(ctx context.Context, address string) (*Score, error) {
	if strings.TrimSpace(address) == "" {
		return nil, errors.New("地址不能为空")
	}

	endpoint := fmt.Sprintf("%s/v1/addresses/%s/reputation", c.baseURL, strings.ToLower(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("构建评分请求失败: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求信誉评分服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("信誉评分服务返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("解析评分响应失败: %w", err)
	}
	if decoded.Score == nil {
		return nil, errors.New("评分响应中缺少 score 字段")
	}
	return &Score{Value: *decoded.Score, Counters: decoded.Metadata}, nil
}

// ensure interface compliance at compile time
var _ Scorer = (*Client)(nil)
