package alerting

import (
	"context"
	"time"

	"MintRelay/pkg/logger"
)

// Event 描述一条需要运营关注的告警事件。
type Event struct {
	Kind     string            `json:"kind"`
	Severity string            `json:"severity"`
	Message  string            `json:"message"`
	Fields   map[string]string `json:"fields,omitempty"`
	At       time.Time         `json:"at"`
}

// 常见的告警事件类型。
const (
	KindMintFailed      = "mint_failed"
	KindMintUnconfirmed = "mint_unconfirmed"
	KindLedgerFailure   = "ledger_failure"
	KindSocialFailure   = "social_failure"
)

// Notifier 将告警事件推送到某个具体渠道。
type Notifier interface {
	Notify(ctx context.Context, event Event) error
	Close() error
}

// Dispatcher 把事件扇出到全部已注册的渠道。
// 任一渠道失败只记日志, 不影响其余渠道和主流程。
type Dispatcher struct {
	notifiers []Notifier
}

// NewDispatcher 创建告警分发器。
func NewDispatcher(notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers}
}

// Dispatch 发送一条告警事件。事件时间为空时补当前时间。
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	for _, notifier := range d.notifiers {
		if err := notifier.Notify(ctx, event); err != nil {
			logger.L().Error("推送告警事件失败",
				"kind", event.Kind,
				"error", err,
			)
		}
	}
}

// Close 依次关闭全部渠道。
func (d *Dispatcher) Close() {
	for _, notifier := range d.notifiers {
		if err := notifier.Close(); err != nil {
			logger.L().Warn("关闭告警渠道失败", "error", err)
		}
	}
}

// LogNotifier 把告警写入结构化日志, 是默认渠道。
type LogNotifier struct{}

// Notify 记录告警日志。
func (LogNotifier) Notify(_ context.Context, event Event) error {
	logger.L().Warn("告警事件",
		"kind", event.Kind,
		"severity", event.Severity,
		"message", event.Message,
		"fields", event.Fields,
	)
	return nil
}

// Close 对日志渠道无事可做。
func (LogNotifier) Close() error { return nil }

var _ Notifier = LogNotifier{}
