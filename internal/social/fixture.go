package social

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"MintRelay/internal/mention"
)

// FixtureSource 从本地 JSON 文件读取提及，用于联调与排障，
// 避免消耗受限的社交平台 API 配额。文件结构与提及接口的响应一致。
type FixtureSource struct {
	path string
}

// NewFixtureSource 创建一个固定数据源。
func NewFixtureSource(path string) *FixtureSource {
	return &FixtureSource{path: path}
}

type fixtureFile struct {
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
}

// MentionsSince 返回固定文件中游标之后的提及。
func (f *FixtureSource) MentionsSince(_ context.Context, sinceID string, maxResults int) ([]mention.Mention, error) {
	content, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("读取提及样例文件失败: %w", err)
	}

	var file fixtureFile
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("解析提及样例文件失败: %w", err)
	}

	handles := make(map[string]string, len(file.Includes.Users))
	for _, user := range file.Includes.Users {
		handles[user.ID] = user.Username
	}

	var mentions []mention.Mention
	for _, tweet := range file.Data {
		if sinceID != "" && mention.CompareID(tweet.ID, sinceID) <= 0 {
			continue
		}
		mentions = append(mentions, mention.Mention{
			ID:           tweet.ID,
			Text:         tweet.Text,
			AuthorID:     tweet.AuthorID,
			AuthorHandle: handles[tweet.AuthorID],
		})
	}

	sort.Slice(mentions, func(i, j int) bool {
		return mention.CompareID(mentions[i].ID, mentions[j].ID) < 0
	})
	if maxResults > 0 && len(mentions) > maxResults {
		mentions = mentions[:maxResults]
	}
	return mentions, nil
}

// ensure interface compliance at compile time
var _ MentionSource = (*FixtureSource)(nil)
