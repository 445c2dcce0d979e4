package wallet

import "context"

// PendingTransaction 是钱包服务受理调用后返回的交易句柄。
type PendingTransaction struct {
	Hash string
	Link string
}

// Invoker 抽象了外部托管钱包的合约调用能力。托管、签名与广播
// 都发生在钱包服务内部，核心只拿到交易哈希后自行轮询确认。
type Invoker interface {
	// Invoke 发起一次合约调用。调用方绝不重试：重复的调用可能
	// 造成重复花费，幂等性由调用键在钱包服务侧兜底。
	Invoke(ctx context.Context, contract, method string, args map[string]string, value string) (*PendingTransaction, error)
}
