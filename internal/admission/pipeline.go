package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"MintRelay/internal/chain"
	"MintRelay/internal/llm"
	"MintRelay/internal/mention"
	"MintRelay/internal/mint"
	"MintRelay/internal/observability/alerting"
	"MintRelay/internal/reply"
	"MintRelay/internal/reputation"
	"MintRelay/internal/wallet"
	"MintRelay/pkg/logger"
)

// Disposition 描述一条提及经过流水线后的去向。
type Disposition struct {
	// Skipped 表示台账中已有记录, 本次为重放, 未产生任何副作用。
	Skipped bool
	// NotARequest 表示文本中没有铸造请求, 不落账也不回复。
	NotARequest bool
	// Status 是写入台账的终态, 仅在前两者都为 false 时有效。
	Status mention.Status
}

// Pipeline 按固定顺序执行准入检查, 对每条提及产生恰好一次终态写入
// 和至多一条回复。余额与信誉检查失败时一律拒绝, 不放行。
type Pipeline struct {
	ledger    mention.Ledger
	extractor *Extractor
	resolver  chain.Resolver
	reader    chain.Reader
	scorer    reputation.Scorer
	executor  *mint.Executor
	composer  *reply.Composer
	alerts    *alerting.Dispatcher
	threshold int
	adminID   string
}

// Options 汇总构建流水线所需的全部依赖。
type Options struct {
	Ledger        mention.Ledger
	Extractor     *Extractor
	Resolver      chain.Resolver
	Reader        chain.Reader
	Scorer        reputation.Scorer
	Executor      *mint.Executor
	Composer      *reply.Composer
	Alerts        *alerting.Dispatcher
	Threshold     int
	AdminAuthorID string
}

// NewPipeline 创建准入流水线。Resolver 可以为空, 此时域名请求一律视为无效地址。
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Ledger == nil {
		return nil, errors.New("未提供提及台账")
	}
	if opts.Extractor == nil {
		return nil, errors.New("未提供文本解析器")
	}
	if opts.Reader == nil {
		return nil, errors.New("未提供链上读取客户端")
	}
	if opts.Scorer == nil {
		return nil, errors.New("未提供信誉评分客户端")
	}
	if opts.Executor == nil {
		return nil, errors.New("未提供铸造执行器")
	}
	if opts.Composer == nil {
		return nil, errors.New("未提供回复组装器")
	}
	if opts.Alerts == nil {
		opts.Alerts = alerting.NewDispatcher(alerting.LogNotifier{})
	}
	return &Pipeline{
		ledger:    opts.Ledger,
		extractor: opts.Extractor,
		resolver:  opts.Resolver,
		reader:    opts.Reader,
		scorer:    opts.Scorer,
		executor:  opts.Executor,
		composer:  opts.Composer,
		alerts:    opts.Alerts,
		threshold: opts.Threshold,
		adminID:   opts.AdminAuthorID,
	}, nil
}

// Process 对一条提及执行完整的准入与铸造流程。
// 返回的 error 仅代表台账等基础设施故障, 业务上的拒绝都体现在 Disposition 中。
func (p *Pipeline) Process(ctx context.Context, m mention.Mention) (Disposition, error) {
	processed, err := p.ledger.IsProcessed(ctx, m.ID)
	if err != nil {
		return Disposition{}, fmt.Errorf("查询提及处理状态失败: %w", err)
	}
	if processed {
		logger.L().Debug("提及已有记录, 跳过", "mention_id", m.ID)
		return Disposition{Skipped: true}, nil
	}

	extraction := p.extractor.Extract(m.Text)
	if extraction.Kind == KindNoRequest {
		return Disposition{NotARequest: true}, nil
	}

	handle := m.AuthorHandle
	if extraction.TaggedUser != "" {
		handle = extraction.TaggedUser
	}

	if extraction.Kind == KindInvalid {
		return p.reject(ctx, m, handle, mention.StatusInvalidAddress, llm.OutcomeInvalidTarget, extraction.Literal, "", "")
	}

	address := extraction.Address
	domain := extraction.Domain
	if domain != "" {
		address, err = p.resolveDomain(ctx, domain)
		if err != nil {
			logger.L().Info("域名解析失败", "mention_id", m.ID, "domain", domain, "error", err)
			return p.reject(ctx, m, handle, mention.StatusInvalidAddress, llm.OutcomeInvalidTarget, domain, "", domain)
		}
	}

	if ok := p.checkBalance(ctx, m.ID, address); !ok {
		return p.reject(ctx, m, handle, mention.StatusZeroBalance, llm.OutcomeZeroBalance, address, address, domain)
	}

	if ok := p.checkReputation(ctx, m.ID, address); !ok {
		return p.reject(ctx, m, handle, mention.StatusLowReputation, llm.OutcomeLowReputation, address, address, domain)
	}

	if m.AuthorID != p.adminID || p.adminID == "" {
		priorID, found, err := p.ledger.FindPriorMint(ctx, m.AuthorID, address)
		if err != nil {
			return Disposition{}, fmt.Errorf("查询历史铸造记录失败: %w", err)
		}
		if found {
			logger.L().Info("命中历史铸造记录, 拒绝重复请求",
				"mention_id", m.ID,
				"prior_mention_id", priorID,
			)
			return p.reject(ctx, m, handle, mention.StatusDuplicate, llm.OutcomeDuplicate, address, address, domain)
		}
	}

	return p.mintAndReply(ctx, m, handle, address, domain)
}

// resolveDomain 调用外部解析器把人类可读名称换成地址。
func (p *Pipeline) resolveDomain(ctx context.Context, domain string) (string, error) {
	if p.resolver == nil {
		return "", errors.New("未配置域名解析器")
	}
	return p.resolver.Resolve(ctx, domain)
}

// checkBalance 查询原生币余额。查询失败按余额不足处理。
func (p *Pipeline) checkBalance(ctx context.Context, mentionID, address string) bool {
	balance, err := p.reader.BalanceAt(ctx, address)
	if err != nil {
		logger.L().Warn("余额查询失败, 按零余额拒绝", "mention_id", mentionID, "address", address, "error", err)
		return false
	}
	return balance.Sign() > 0
}

// checkReputation 查询信誉评分。阈值为闭下界, 等于阈值的评分放行。
// 查询失败按低信誉处理。
func (p *Pipeline) checkReputation(ctx context.Context, mentionID, address string) bool {
	score, err := p.scorer.Score(ctx, address)
	if err != nil {
		logger.L().Warn("信誉评分查询失败, 按低信誉拒绝", "mention_id", mentionID, "address", address, "error", err)
		return false
	}
	return score.Value >= p.threshold
}

// reject 为被拒绝的提及发送一条说明回复并写入终态记录。
// target 是回复中引用的目标字面量, 无效请求时为原始输入而非解析结果。
func (p *Pipeline) reject(ctx context.Context, m mention.Mention, handle string, status mention.Status, outcome llm.Outcome, target, address, domain string) (Disposition, error) {
	replyID, err := p.composer.ReplyFailure(ctx, m.ID, handle, outcome, target)
	if err != nil {
		logger.L().Error("发送拒绝回复失败", "mention_id", m.ID, "status", string(status), "error", err)
	}

	entry := mention.Entry{
		Text:          m.Text,
		Status:        status,
		MintedAddress: address,
		MintedDomain:  domain,
		ReplyID:       replyID,
		Author:        mention.Author{Handle: m.AuthorHandle, ID: m.AuthorID},
		ProcessedAt:   time.Now().Unix(),
	}
	if err := p.ledger.Record(ctx, m.ID, entry); err != nil {
		return Disposition{}, fmt.Errorf("写入拒绝记录失败: %w", err)
	}
	return Disposition{Status: status}, nil
}

// mintAndReply 执行铸造、确认、回复与终态落账。
// 临时 minting 记录在交易提交后立即写入, 崩溃时可被运营发现。
func (p *Pipeline) mintAndReply(ctx context.Context, m mention.Mention, handle, address, domain string) (Disposition, error) {
	author := mention.Author{Handle: m.AuthorHandle, ID: m.AuthorID}

	result, err := p.executor.Execute(ctx, address, func(tx *wallet.PendingTransaction) error {
		return p.ledger.Record(ctx, m.ID, mention.Entry{
			Text:          m.Text,
			Status:        mention.StatusMinting,
			TxHash:        tx.Hash,
			MintedAddress: address,
			MintedDomain:  domain,
			Author:        author,
			ProcessedAt:   time.Now().Unix(),
		})
	})
	if err != nil {
		logger.L().Error("铸造流程失败", "mention_id", m.ID, "address", address, "error", err)
		p.alerts.Dispatch(ctx, alerting.Event{
			Kind:     alerting.KindMintFailed,
			Severity: "critical",
			Message:  "mint execution failed",
			Fields:   map[string]string{"mention_id": m.ID, "address": address, "error": err.Error()},
		})
		return p.recordMintOutcome(ctx, m, handle, mention.StatusMintFailed, address, domain, nil)
	}

	if !result.Confirmed {
		p.alerts.Dispatch(ctx, alerting.Event{
			Kind:     alerting.KindMintUnconfirmed,
			Severity: "warning",
			Message:  "mint transaction not confirmed within retry budget",
			Fields:   map[string]string{"mention_id": m.ID, "tx_hash": result.TxHash},
		})
		return p.recordMintOutcome(ctx, m, handle, mention.StatusProcessed, address, domain, result)
	}

	replyID, err := p.composer.ReplySuccess(ctx, m.ID, handle, result.TokenName, result.TxLink, result.ArtifactSVG)
	if err != nil {
		// 铸造已经不可逆, 回复丢失只记日志, 结果照常落账
		logger.L().Error("发送成功回复失败", "mention_id", m.ID, "tx_hash", result.TxHash, "error", err)
	}

	entry := mention.Entry{
		Text:          m.Text,
		Status:        mention.StatusProcessed,
		MintSucceeded: true,
		TxHash:        result.TxHash,
		MintedAddress: address,
		MintedDomain:  domain,
		ReplyID:       replyID,
		Author:        author,
		ProcessedAt:   time.Now().Unix(),
	}
	if err := p.ledger.Record(ctx, m.ID, entry); err != nil {
		return Disposition{}, fmt.Errorf("写入铸造成功记录失败: %w", err)
	}

	logger.Audit().Info("提及处理完成",
		"mention_id", m.ID,
		"status", string(mention.StatusProcessed),
		"tx_hash", result.TxHash,
		"minted_address", strings.ToLower(address),
	)
	return Disposition{Status: mention.StatusProcessed}, nil
}

// recordMintOutcome 为失败或未确认的铸造写入终态并发送道歉回复。
func (p *Pipeline) recordMintOutcome(ctx context.Context, m mention.Mention, handle string, status mention.Status, address, domain string, result *mint.Result) (Disposition, error) {
	replyID, err := p.composer.ReplyFailure(ctx, m.ID, handle, llm.OutcomeMintFailed, address)
	if err != nil {
		logger.L().Error("发送失败回复失败", "mention_id", m.ID, "error", err)
	}

	entry := mention.Entry{
		Text:          m.Text,
		Status:        status,
		MintedAddress: address,
		MintedDomain:  domain,
		ReplyID:       replyID,
		Author:        mention.Author{Handle: m.AuthorHandle, ID: m.AuthorID},
		ProcessedAt:   time.Now().Unix(),
	}
	if result != nil {
		entry.TxHash = result.TxHash
	}
	if err := p.ledger.Record(ctx, m.ID, entry); err != nil {
		return Disposition{}, fmt.Errorf("写入铸造失败记录失败: %w", err)
	}
	return Disposition{Status: status}, nil
}
