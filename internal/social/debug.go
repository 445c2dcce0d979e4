package social

import (
	"context"
	"fmt"
	"sync/atomic"

	"MintRelay/internal/mention"
	"MintRelay/pkg/logger"
)

// DebugClient 在联调模式下把回复写入日志而不是真正发布,
// 提及则来自注入的数据源 (通常是 FixtureSource)。
type DebugClient struct {
	source  MentionSource
	counter atomic.Int64
}

// NewDebugClient 创建联调客户端。
func NewDebugClient(source MentionSource) *DebugClient {
	return &DebugClient{source: source}
}

// MentionsSince 委托给注入的数据源。
func (d *DebugClient) MentionsSince(ctx context.Context, sinceID string, maxResults int) ([]mention.Mention, error) {
	return d.source.MentionsSince(ctx, sinceID, maxResults)
}

// PostReply 记录日志并返回合成的回复 ID。
func (d *DebugClient) PostReply(_ context.Context, tweetID, text, mediaID string) (string, error) {
	replyID := fmt.Sprintf("debug-reply-%d", d.counter.Add(1))
	logger.L().Info("联调模式: 模拟发布回复",
		"tweet_id", tweetID,
		"reply_id", replyID,
		"media_id", mediaID,
		"text", text,
	)
	return replyID, nil
}

// UploadMedia 记录日志并返回合成的媒体 ID。
func (d *DebugClient) UploadMedia(_ context.Context, data []byte, mimeType string) (string, error) {
	mediaID := fmt.Sprintf("debug-media-%d", d.counter.Add(1))
	logger.L().Info("联调模式: 模拟上传媒体",
		"media_id", mediaID,
		"mime_type", mimeType,
		"size", len(data),
	)
	return mediaID, nil
}

var _ Client = (*DebugClient)(nil)
