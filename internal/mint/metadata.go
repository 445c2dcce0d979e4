package mint

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Metadata 是铸造合约返回的作品元数据, 至少包含名称与图片。
type Metadata struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// MetadataFetcher 负责拉取并解析 tokenURI 指向的元数据及其图片。
// 元数据缺失或格式错误视为铸造阶段的硬失败。
type MetadataFetcher struct {
	httpClient *http.Client
}

// NewMetadataFetcher 创建元数据拉取器。
func NewMetadataFetcher(timeout time.Duration) *MetadataFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &MetadataFetcher{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch 解析 tokenURI 并返回结构化元数据。
// 支持 data: 内联 URI 与 http(s) 两种形式。
func (f *MetadataFetcher) Fetch(ctx context.Context, uri string) (*Metadata, error) {
	raw, err := f.resolve(ctx, uri)
	if err != nil {
		return nil, err
	}

	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("解析作品元数据失败: %w", err)
	}
	if strings.TrimSpace(meta.Image) == "" {
		return nil, errors.New("作品元数据中缺少 image 字段")
	}
	return &meta, nil
}

// Artifact 拉取元数据中引用的矢量图内容。
func (f *MetadataFetcher) Artifact(ctx context.Context, meta *Metadata) ([]byte, error) {
	if meta == nil {
		return nil, errors.New("作品元数据为空")
	}
	return f.resolve(ctx, meta.Image)
}

// resolve 按 URI 方案取回原始字节。
func (f *MetadataFetcher) resolve(ctx context.Context, uri string) ([]byte, error) {
	uri = strings.TrimSpace(uri)
	switch {
	case uri == "":
		return nil, errors.New("URI 为空")
	case strings.HasPrefix(uri, "data:"):
		return decodeDataURI(uri)
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return f.fetchHTTP(ctx, uri)
	default:
		return nil, fmt.Errorf("不支持的 URI 方案: %s", uri)
	}
}

func (f *MetadataFetcher) fetchHTTP(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("构建元数据请求失败: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("拉取元数据失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("元数据服务返回错误状态 %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("读取元数据响应失败: %w", err)
	}
	return body, nil
}

// decodeDataURI 解码形如 data:<mime>[;base64],<payload> 的内联内容。
func decodeDataURI(uri string) ([]byte, error) {
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return nil, errors.New("data URI 缺少内容分隔符")
	}
	header := uri[len("data:"):comma]
	payload := uri[comma+1:]

	if strings.HasSuffix(header, ";base64") {
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("解码 base64 data URI 失败: %w", err)
		}
		return decoded, nil
	}

	decoded, err := url.QueryUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("解码 data URI 失败: %w", err)
	}
	return []byte(decoded), nil
}
