package llm

import "context"

// Outcome 标识一条提及最终落入的处理分支。
type Outcome string

const (
	OutcomeMinted        Outcome = "minted"
	OutcomeMintFailed    Outcome = "mint_failed"
	OutcomeInvalidTarget Outcome = "invalid_target"
	OutcomeZeroBalance   Outcome = "zero_balance"
	OutcomeLowReputation Outcome = "low_reputation"
	OutcomeDuplicate     Outcome = "duplicate"
)

// Request 描述一次回复润色所需要的上下文。
type Request struct {
	Outcome   Outcome
	Handle    string
	TokenName string
	TxLink    string
	// Target 是本次请求的铸造目标字面量 (地址或名称),
	// 拒绝类回复需要原样引用它, 方便用户对照检查。
	Target string
}

// Phraser 定义了调用大模型润色回复文案的统一接口。
// 返回的文本不保证满足平台长度限制, 由调用方裁剪。
type Phraser interface {
	Phrase(ctx context.Context, req Request) (string, error)
}
