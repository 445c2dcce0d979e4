package reply

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"unicode/utf8"

	"MintRelay/internal/llm"
	"MintRelay/internal/render"
	"MintRelay/internal/social"
	"MintRelay/pkg/logger"
)

// maxReplyLength 是平台允许的单条回复最大字符数。
const maxReplyLength = 280

// Composer 负责为每个终态生成回复文案并发布到社交平台。
// 回复失败只记录日志, 不会影响已经落账的铸造结果。
type Composer struct {
	replier   social.Replier
	converter render.Converter
	phraser   llm.Phraser
	templates templateSet
}

// Option 用于定制 Composer 的可选能力。
type Option func(*Composer)

// WithConverter 启用 SVG 转 PNG 能力, 成功铸造的回复将附带图片。
func WithConverter(converter render.Converter) Option {
	return func(c *Composer) {
		c.converter = converter
	}
}

// WithPhraser 启用大模型润色文案, 润色失败时回退到模板。
func WithPhraser(phraser llm.Phraser) Option {
	return func(c *Composer) {
		c.phraser = phraser
	}
}

// NewComposer 创建回复组装器, templatesPath 为空时使用内置模板。
func NewComposer(replier social.Replier, templatesPath string, opts ...Option) (*Composer, error) {
	if replier == nil {
		return nil, fmt.Errorf("未提供回复发布客户端")
	}

	templates, err := loadTemplates(templatesPath)
	if err != nil {
		return nil, err
	}

	composer := &Composer{
		replier:   replier,
		templates: templates,
	}
	for _, opt := range opts {
		opt(composer)
	}
	return composer, nil
}

// ReplySuccess 针对铸造成功的提及发布祝贺回复。
// svg 非空且配置了转换器时, 会把作品图片作为附件一并发布。
func (c *Composer) ReplySuccess(ctx context.Context, tweetID, handle, tokenName, txLink string, svg []byte) (string, error) {
	req := llm.Request{
		Outcome:   llm.OutcomeMinted,
		Handle:    handle,
		TokenName: tokenName,
		TxLink:    txLink,
	}

	mediaID := ""
	if c.converter != nil && len(svg) > 0 {
		png, err := c.converter.Convert(ctx, svg)
		if err != nil {
			logger.L().Warn("作品图片转换失败, 回复将不带附件", "tweet_id", tweetID, "error", err)
		} else {
			mediaID, err = c.replier.UploadMedia(ctx, png, "image/png")
			if err != nil {
				logger.L().Warn("上传作品图片失败, 回复将不带附件", "tweet_id", tweetID, "error", err)
				mediaID = ""
			}
		}
	}

	text := c.composeText(ctx, req)
	return c.post(ctx, tweetID, text, mediaID)
}

// ReplyFailure 针对被拒绝或失败的提及发布说明回复。
// target 是本次请求的铸造目标字面量, 拒绝类模板会原样引用它。
func (c *Composer) ReplyFailure(ctx context.Context, tweetID, handle string, outcome llm.Outcome, target string) (string, error) {
	text := c.composeText(ctx, llm.Request{Outcome: outcome, Handle: handle, Target: target})
	return c.post(ctx, tweetID, text, "")
}

// composeText 优先用大模型润色, 失败或超长时回退到模板。
func (c *Composer) composeText(ctx context.Context, req llm.Request) string {
	if c.phraser != nil {
		phrased, err := c.phraser.Phrase(ctx, req)
		if err != nil {
			logger.L().Warn("大模型润色失败, 回退到模板文案", "outcome", string(req.Outcome), "error", err)
		} else if phrased = strings.TrimSpace(phrased); phrased != "" && utf8.RuneCountInString(phrased) <= maxReplyLength {
			// 成功回复必须携带交易链接, 模型漏掉时仍回退到模板
			if req.Outcome != llm.OutcomeMinted || req.TxLink == "" || strings.Contains(phrased, req.TxLink) {
				return phrased
			}
		}
	}
	return c.fromTemplate(req)
}

// fromTemplate 从模板集中随机挑选一条并渲染。
func (c *Composer) fromTemplate(req llm.Request) string {
	texts, ok := c.templates[req.Outcome]
	if !ok || len(texts) == 0 {
		texts = defaultTemplates[llm.OutcomeMintFailed]
	}
	text := renderTemplate(texts[rand.Intn(len(texts))], req)
	return truncateReply(text)
}

func (c *Composer) post(ctx context.Context, tweetID, text, mediaID string) (string, error) {
	replyID, err := c.replier.PostReply(ctx, tweetID, text, mediaID)
	if err != nil {
		return "", fmt.Errorf("发布回复失败: %w", err)
	}
	return replyID, nil
}

// truncateReply 将超长文案裁剪到平台限制以内。
func truncateReply(text string) string {
	runes := []rune(text)
	if len(runes) <= maxReplyLength {
		return text
	}
	return string(runes[:maxReplyLength-3]) + "..."
}
