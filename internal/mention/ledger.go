package mention

import "context"

// Ledger 抽象了提及台账的持久化接口。台账是去重的唯一事实来源：
// 写入在返回前必须落盘，崩溃后不得丢失已返回成功的记录。
type Ledger interface {
	// IsProcessed 判断提及是否已有记录（含 minting 临时记录）。
	IsProcessed(ctx context.Context, id string) (bool, error)
	// Record 写入提及的处理记录并原子持久化。
	// 已有终态记录时返回 ErrMentionProcessed；minting 记录允许被终态覆盖。
	Record(ctx context.Context, id string, entry Entry) error
	// Checkpoint 返回当前游标（已抓取的最大提及 ID），无游标时返回空串。
	Checkpoint(ctx context.Context) (string, error)
	// AdvanceCheckpoint 仅当 maxIDSeen 严格大于已存游标时更新，并持久化。
	AdvanceCheckpoint(ctx context.Context, maxIDSeen string) error
	// FindPriorMint 按作者 ID 或铸造目标地址（忽略大小写）查找已成功的铸造，
	// 返回命中的提及 ID。
	FindPriorMint(ctx context.Context, authorID, address string) (string, bool, error)
	// Get 返回指定提及的记录。
	Get(ctx context.Context, id string) (*Entry, error)
	// List 返回符合过滤条件的记录列表。
	List(ctx context.Context, opts ListOptions) ([]*Recorded, error)
	// Stats 统计符合过滤条件的记录数量。
	Stats(ctx context.Context, opts ListOptions) (LedgerStats, error)
	// Close 释放底层资源并做最后一次落盘。
	Close() error
}
