package wallet

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

	"github.com/google/uuid"
)

const defaultTimeout = 60 * time.Second

// Config 描述了调用托管钱包服务所需的信息。
type Config struct {
	BaseURL string
	APIKey  string
	AssetID string
	Timeout time.Duration
}

// Client 通过 HTTP 调用外部托管钱包服务。
type Client struct {
	baseURL    string
	apiKey     string
	assetID    string
	httpClient *http.Client
}

// NewClient 根据配置创建钱包客户端。
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("未配置钱包服务地址")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未配置钱包服务 API Key")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		assetID: cfg.AssetID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// invokeRequest 对应钱包服务合约调用接口的请求体。
type invokeRequest struct {
	ContractAddress string            `json:"contract_address"`
	Method          string            `json:"method"`
	Args            map[string]string `json:"args,omitempty"`
	Value           string            `json:"value,omitempty"`
	AssetID         string            `json:"asset_id,omitempty"`
	IdempotencyKey  string            `json:"idempotency_key"`
}

// invokeResponse 对应钱包服务合约调用接口的响应体。
type invokeResponse struct {
	TransactionHash string `json:"transaction_hash"`
	TransactionLink string `json:"transaction_link"`
}

// Invoke 发起一次合约调用。每次调用携带独立的幂等键，
// 钱包服务据此拒绝网络层造成的重复提交。
func (c *Client) Invoke(ctx context.Context, contract, method string, args map[string]string, value string) (*PendingTransaction, error) {
	if strings.TrimSpace(contract) == "" {
		return nil, errors.New("合约地址不能为空")
	}
	if strings.TrimSpace(method) == "" {
		return nil, errors.New("合约方法不能为空")
	}

	payload := invokeRequest{
		ContractAddress: contract,
		Method:          method,
		Args:            args,
		Value:           value,
		AssetID:         c.assetID,
		IdempotencyKey:  uuid.NewString(),
	}
	encoded, err := json.Marshal(&payload)
	if err != nil {
		return nil, fmt.Errorf("序列化钱包调用请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/invocations", bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("构建钱包调用请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", payload.IdempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求钱包服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("钱包服务返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded invokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("解析钱包调用响应失败: %w", err)
	}
	if decoded.TransactionHash == "" {
		return nil, errors.New("钱包调用响应中缺少 transaction_hash 字段")
	}
	return &PendingTransaction{
		Hash: decoded.TransactionHash,
		Link: decoded.TransactionLink,
	}, nil
}

// ensure interface compliance at compile time
var _ Invoker = (*Client)(nil)
