package mention

// SortOrder 控制列表的排序方向。
type SortOrder int

const (
	// SortByProcessedDesc 按处理时间倒序，最新记录在前。
	SortByProcessedDesc SortOrder = iota
	// SortByProcessedAsc 按处理时间正序。
	SortByProcessedAsc
)

// ListOptions 描述台账查询的过滤条件。
type ListOptions struct {
	Statuses    []Status
	MintSuccess *bool
	Limit       int
	Order       SortOrder
}

// ListOption 以函数式可选参数的形式构造 ListOptions。
type ListOption func(*ListOptions)

// WithStatuses 仅返回处于指定状态的记录。
func WithStatuses(statuses ...Status) ListOption {
	return func(o *ListOptions) {
		o.Statuses = append(o.Statuses, statuses...)
	}
}

// WithMintSuccess 按铸造是否成功过滤。
func WithMintSuccess(success bool) ListOption {
	return func(o *ListOptions) {
		o.MintSuccess = &success
	}
}

// WithLimit 限制返回的记录条数。
func WithLimit(limit int) ListOption {
	return func(o *ListOptions) {
		if limit > 0 {
			o.Limit = limit
		}
	}
}

// WithOrder 指定排序方向。
func WithOrder(order SortOrder) ListOption {
	return func(o *ListOptions) {
		o.Order = order
	}
}

// BuildListOptions 汇总可选参数并填充默认值。
func BuildListOptions(opts ...ListOption) ListOptions {
	options := ListOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	options.applyDefaults()
	return options
}

func (o *ListOptions) applyDefaults() {
	if o.Limit <= 0 {
		o.Limit = 50
	}
}

// LedgerStats 统计台账中各状态的记录数量。
type LedgerStats struct {
	Total          int `json:"total"`
	Minting        int `json:"minting"`
	Processed      int `json:"processed"`
	MintFailed     int `json:"mint_failed"`
	InvalidAddress int `json:"invalid_address"`
	ZeroBalance    int `json:"zero_balance"`
	LowReputation  int `json:"low_reputation"`
	Duplicate      int `json:"duplicate_request"`
	MintSucceeded  int `json:"mint_succeeded"`
}

func (s *LedgerStats) observe(entry *Entry) {
	s.Total++
	switch entry.Status {
	case StatusMinting:
		s.Minting++
	case StatusProcessed:
		s.Processed++
	case StatusMintFailed:
		s.MintFailed++
	case StatusInvalidAddress:
		s.InvalidAddress++
	case StatusZeroBalance:
		s.ZeroBalance++
	case StatusLowReputation:
		s.LowReputation++
	case StatusDuplicate:
		s.Duplicate++
	}
	if entry.MintSucceeded {
		s.MintSucceeded++
	}
}

func matchesListFilters(entry *Entry, opts ListOptions) bool {
	if len(opts.Statuses) > 0 {
		matched := false
		for _, status := range opts.Statuses {
			if entry.Status == status {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if opts.MintSuccess != nil && entry.MintSucceeded != *opts.MintSuccess {
		return false
	}
	return true
}
