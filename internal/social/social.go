package social

import (
	"context"

	"MintRelay/internal/mention"
)

// MentionSource 抽象了提及的分页拉取能力。
// sinceID 为空表示从头拉取；返回结果按提及 ID 升序排列。
type MentionSource interface {
	MentionsSince(ctx context.Context, sinceID string, maxResults int) ([]mention.Mention, error)
}

// Replier 抽象了回复与媒体上传能力。回复是直接的类型化调用，
// 不经过任何自然语言的动作分发。
type Replier interface {
	// PostReply 在指定推文下发布回复，返回新回复的 ID。
	PostReply(ctx context.Context, tweetID, text, mediaID string) (string, error)
	// UploadMedia 上传媒体内容，返回可附加到回复上的媒体 ID。
	UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Client 同时具备拉取与回复能力。
type Client interface {
	MentionSource
	Replier
}
