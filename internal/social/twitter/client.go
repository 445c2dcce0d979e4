package twitter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"MintRelay/internal/mention"
	"MintRelay/internal/social"
)

const (
	defaultBaseURL   = "https://api.twitter.com/2"
	defaultUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
	defaultTimeout   = 30 * time.Second
	maxPageSize      = 100
)

// Config 描述了调用 Twitter (X) v2 API 所需的信息。
type Config struct {
	BearerToken string
	BaseURL     string
	UploadURL   string
	AccountID   string
	Timeout     time.Duration
}

// Client 通过 HTTP 访问 Twitter v2 API。所有响应在边界处解码为
// 类型化结构体，后续层不再做字段探测。
type Client struct {
	token      string
	baseURL    string
	uploadURL  string
	accountID  string
	httpClient *http.Client
}

// NewClient 根据配置创建 Twitter 客户端。
func NewClient(cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.BearerToken)
	if token == "" {
		return nil, errors.New("未提供 Twitter Bearer Token")
	}
	if strings.TrimSpace(cfg.AccountID) == "" {
		return nil, errors.New("未提供机器人账号 ID")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	uploadURL := strings.TrimSpace(cfg.UploadURL)
	if uploadURL == "" {
		uploadURL = defaultUploadURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		token:     token,
		baseURL:   strings.TrimRight(baseURL, "/"),
		uploadURL: uploadURL,
		accountID: cfg.AccountID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// mentionsResponse 对应 GET /2/users/:id/mentions 的响应体。
type mentionsResponse struct {
	Data []struct {
		ID       string `json:"id"`
		Text     string `json:"text"`
		AuthorID string `json:"author_id"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NewestID    string `json:"newest_id"`
	} `json:"meta"`
}

// MentionsSince 拉取游标之后的提及，附带作者的用户名。
func (c *Client) MentionsSince(ctx context.Context, sinceID string, maxResults int) ([]mention.Mention, error) {
	if maxResults <= 0 || maxResults > maxPageSize {
		maxResults = maxPageSize
	}

	params := url.Values{}
	params.Set("expansions", "author_id")
	params.Set("user.fields", "username")
	params.Set("max_results", strconv.Itoa(maxResults))
	if sinceID != "" {
		params.Set("since_id", sinceID)
	}

	endpoint := fmt.Sprintf("%s/users/%s/mentions?%s", c.baseURL, c.accountID, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("构建提及请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("拉取提及失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("Twitter 返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded mentionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("解析提及响应失败: %w", err)
	}

	handles := make(map[string]string, len(decoded.Includes.Users))
	for _, user := range decoded.Includes.Users {
		handles[user.ID] = user.Username
	}

	mentions := make([]mention.Mention, 0, len(decoded.Data))
	for _, tweet := range decoded.Data {
		mentions = append(mentions, mention.Mention{
			ID:           tweet.ID,
			Text:         tweet.Text,
			AuthorID:     tweet.AuthorID,
			AuthorHandle: handles[tweet.AuthorID],
		})
	}

	// API 按时间倒序返回，调度器要求按到达顺序处理。
	sort.Slice(mentions, func(i, j int) bool {
		return mention.CompareID(mentions[i].ID, mentions[j].ID) < 0
	})
	return mentions, nil
}

// createTweetRequest 对应 POST /2/tweets 的请求体。
type createTweetRequest struct {
	Text  string `json:"text"`
	Reply struct {
		InReplyToTweetID string `json:"in_reply_to_tweet_id"`
	} `json:"reply"`
	Media *struct {
		MediaIDs []string `json:"media_ids"`
	} `json:"media,omitempty"`
}

// createTweetResponse 对应 POST /2/tweets 的响应体。
type createTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// PostReply 在指定推文下发布回复，返回新回复的 ID。
func (c *Client) PostReply(ctx context.Context, tweetID, text, mediaID string) (string, error) {
	if strings.TrimSpace(tweetID) == "" {
		return "", errors.New("回复的目标推文 ID 不能为空")
	}

	payload := createTweetRequest{Text: text}
	payload.Reply.InReplyToTweetID = tweetID
	if mediaID != "" {
		payload.Media = &struct {
			MediaIDs []string `json:"media_ids"`
		}{MediaIDs: []string{mediaID}}
	}

	encoded, err := json.Marshal(&payload)
	if err != nil {
		return "", fmt.Errorf("序列化回复请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tweets", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("构建回复请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("发布回复失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("Twitter 返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded createTweetResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("解析回复响应失败: %w", err)
	}
	if decoded.Data.ID == "" {
		return "", errors.New("回复响应中缺少 id 字段")
	}
	return decoded.Data.ID, nil
}

// uploadResponse 对应媒体上传接口的响应体。
type uploadResponse struct {
	MediaIDString string `json:"media_id_string"`
}

// UploadMedia 以 base64 形式上传媒体，返回媒体 ID。
func (c *Client) UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("媒体内容不能为空")
	}

	form := url.Values{}
	form.Set("media_data", base64.StdEncoding.EncodeToString(data))
	if mimeType != "" {
		form.Set("media_category", "tweet_image")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("构建媒体上传请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("上传媒体失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("媒体上传返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("解析媒体上传响应失败: %w", err)
	}
	if decoded.MediaIDString == "" {
		return "", errors.New("媒体上传响应中缺少 media_id_string 字段")
	}
	return decoded.MediaIDString, nil
}

// ensure interface compliance at compile time
var _ social.Client = (*Client)(nil)
