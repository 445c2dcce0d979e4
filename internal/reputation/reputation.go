package reputation

import "context"

// Score 是外部信誉服务对一个地址的评分结果。
// 评分取值范围固定为 -100 到 +100。
type Score struct {
	Value    int            `json:"score"`
	Counters map[string]int `json:"metadata"`
}

// Scorer 抽象了信誉评分查询。查询失败时流水线按拒绝处理（宁缺毋滥），
// 这里只负责尽力拿到评分。
type Scorer interface {
	Score(ctx context.Context, address string) (*Score, error)
}
