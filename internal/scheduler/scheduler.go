package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MintRelay/internal/admission"
	"MintRelay/internal/mention"
	"MintRelay/internal/observability/alerting"
	"MintRelay/internal/social"
	"MintRelay/pkg/logger"
)

// Scheduler 是单线程的外层轮询循环: 抓取游标之后的新提及,
// 逐条送入准入流水线, 批次结束后推进游标, 休眠, 再来一轮。
// 铸造会花真金白银, 因此严格串行, 不做任何并发处理。
type Scheduler struct {
	source   social.MentionSource
	pipeline *admission.Pipeline
	ledger   mention.Ledger
	alerts   *alerting.Dispatcher
	interval time.Duration
	pageSize int
}

// New 创建轮询调度器。interval 非正表示只跑一个批次就退出, 供运维和测试使用。
func New(source social.MentionSource, pipeline *admission.Pipeline, ledger mention.Ledger, alerts *alerting.Dispatcher, interval time.Duration, pageSize int) (*Scheduler, error) {
	if source == nil {
		return nil, errors.New("未提供提及数据源")
	}
	if pipeline == nil {
		return nil, errors.New("未提供准入流水线")
	}
	if ledger == nil {
		return nil, errors.New("未提供提及台账")
	}
	if alerts == nil {
		alerts = alerting.NewDispatcher(alerting.LogNotifier{})
	}
	if pageSize <= 0 {
		pageSize = 25
	}
	return &Scheduler{
		source:   source,
		pipeline: pipeline,
		ledger:   ledger,
		alerts:   alerts,
		interval: interval,
		pageSize: pageSize,
	}, nil
}

// Run 启动轮询循环, 直到 ctx 取消或单批模式下的首个批次结束。
func (s *Scheduler) Run(ctx context.Context) error {
	s.reportUnreconciled(ctx)

	for {
		if err := s.runBatch(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			logger.L().Error("批次处理失败, 下一轮重试", "error", err)
		}

		if s.interval <= 0 {
			logger.L().Info("单批模式, 调度器退出")
			return nil
		}

		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// runBatch 抓取并处理一个批次的提及, 批次结束后推进游标。
// 游标跟踪抓取进度, 即使批次里只有不构成请求的噪音也照常推进。
func (s *Scheduler) runBatch(ctx context.Context) error {
	checkpoint, err := s.ledger.Checkpoint(ctx)
	if err != nil {
		return fmt.Errorf("读取游标失败: %w", err)
	}

	mentions, err := s.source.MentionsSince(ctx, checkpoint, s.pageSize)
	if err != nil {
		s.alerts.Dispatch(ctx, alerting.Event{
			Kind:     alerting.KindSocialFailure,
			Severity: "warning",
			Message:  "mention fetch failed",
			Fields:   map[string]string{"error": err.Error()},
		})
		return fmt.Errorf("抓取提及失败: %w", err)
	}
	if len(mentions) == 0 {
		logger.L().Debug("本批次没有新提及", "checkpoint", checkpoint)
		return nil
	}

	logger.L().Info("开始处理批次",
		"count", len(mentions),
		"checkpoint", checkpoint,
	)

	maxID := ""
	for _, m := range mentions {
		if ctx.Err() != nil {
			break
		}

		disposition, err := s.pipeline.Process(ctx, m)
		if err != nil {
			// 基础设施故障时不把该提及计入游标, 下一轮重新抓取
			s.alerts.Dispatch(ctx, alerting.Event{
				Kind:     alerting.KindLedgerFailure,
				Severity: "critical",
				Message:  "mention processing failed",
				Fields:   map[string]string{"mention_id": m.ID, "error": err.Error()},
			})
			logger.L().Error("提及处理失败, 中断本批次", "mention_id", m.ID, "error", err)
			break
		}

		switch {
		case disposition.Skipped:
			logger.L().Debug("提及已处理过", "mention_id", m.ID)
		case disposition.NotARequest:
			logger.L().Debug("提及不构成铸造请求", "mention_id", m.ID)
		default:
			logger.L().Info("提及处理完成", "mention_id", m.ID, "status", string(disposition.Status))
		}

		if maxID == "" || mention.CompareID(m.ID, maxID) > 0 {
			maxID = m.ID
		}
	}

	if maxID != "" {
		if err := s.ledger.AdvanceCheckpoint(ctx, maxID); err != nil {
			return fmt.Errorf("推进游标失败: %w", err)
		}
	}
	return nil
}

// reportUnreconciled 在启动时列出停留在 minting 状态的记录。
// 这些是上次运行中提交了交易但未等到确认就中断的提及, 需要人工核对,
// 不会被自动重试。
func (s *Scheduler) reportUnreconciled(ctx context.Context) {
	stuck, err := s.ledger.List(ctx, mention.BuildListOptions(
		mention.WithStatuses(mention.StatusMinting),
	))
	if err != nil {
		logger.L().Warn("查询未完结的铸造记录失败", "error", err)
		return
	}
	for _, record := range stuck {
		logger.L().Warn("发现未完结的铸造记录, 请人工核对",
			"mention_id", record.ID,
			"tx_hash", record.TxHash,
			"minted_address", record.MintedAddress,
		)
	}
}
