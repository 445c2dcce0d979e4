package mention

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	xerrors "MintRelay/internal/errors"
)

// MemoryLedger 以内存方式保存台账，主要用于测试。
type MemoryLedger struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	checkpoint string
}

// NewMemoryLedger 创建 MemoryLedger。
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string]*Entry)}
}

// IsProcessed 实现 Ledger 接口。
func (m *MemoryLedger) IsProcessed(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[id]
	return ok, nil
}

// Record 实现 Ledger 接口。
func (m *MemoryLedger) Record(_ context.Context, id string, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "提及 ID 不能为空")
	}
	if !IsValidStatus(entry.Status) {
		return xerrors.New(xerrors.CodeInvalidArgument, "不支持的台账状态: "+string(entry.Status))
	}
	if existing, ok := m.entries[id]; ok && existing.Status.Terminal() {
		return ErrMentionProcessed
	}
	if entry.ProcessedAt == 0 {
		entry.ProcessedAt = time.Now().Unix()
	}
	clone := entry
	m.entries[id] = &clone
	return nil
}

// Checkpoint 返回当前游标。
func (m *MemoryLedger) Checkpoint(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkpoint, nil
}

// AdvanceCheckpoint 仅在严格变大时推进游标。
func (m *MemoryLedger) AdvanceCheckpoint(_ context.Context, maxIDSeen string) error {
	if maxIDSeen == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.checkpoint == "" || CompareID(maxIDSeen, m.checkpoint) > 0 {
		m.checkpoint = maxIDSeen
	}
	return nil
}

// FindPriorMint 按作者或地址查找已成功的铸造。
func (m *MemoryLedger) FindPriorMint(_ context.Context, authorID, address string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, entry := range m.entries {
		if !entry.MintSucceeded {
			continue
		}
		if authorID != "" && entry.Author.ID == authorID {
			return id, true, nil
		}
		if address != "" && strings.EqualFold(entry.MintedAddress, address) {
			return id, true, nil
		}
	}
	return "", false, nil
}

// Get 返回指定提及的记录。
func (m *MemoryLedger) Get(_ context.Context, id string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[id]
	if !ok {
		return nil, ErrMentionNotFound
	}
	clone := *entry
	return &clone, nil
}

// List 返回符合过滤条件的记录。
func (m *MemoryLedger) List(_ context.Context, opts ListOptions) ([]*Recorded, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	results := make([]*Recorded, 0, len(m.entries))
	for id, entry := range m.entries {
		if !matchesListFilters(entry, opts) {
			continue
		}
		results = append(results, &Recorded{ID: id, Entry: *entry})
	}

	sortRecorded(results, opts.Order)

	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Stats 统计符合过滤条件的记录数量。
func (m *MemoryLedger) Stats(_ context.Context, opts ListOptions) (LedgerStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	stats := LedgerStats{}
	for _, entry := range m.entries {
		if !matchesListFilters(entry, opts) {
			continue
		}
		stats.observe(entry)
	}
	return stats, nil
}

// Close 对内存台账无需操作。
func (m *MemoryLedger) Close() error {
	return nil
}

func sortRecorded(results []*Recorded, order SortOrder) {
	sort.Slice(results, func(i, j int) bool {
		if order == SortByProcessedAsc {
			if results[i].ProcessedAt == results[j].ProcessedAt {
				return CompareID(results[i].ID, results[j].ID) < 0
			}
			return results[i].ProcessedAt < results[j].ProcessedAt
		}
		if results[i].ProcessedAt == results[j].ProcessedAt {
			return CompareID(results[i].ID, results[j].ID) > 0
		}
		return results[i].ProcessedAt > results[j].ProcessedAt
	})
}

// ensure interface compliance at compile time
var _ Ledger = (*MemoryLedger)(nil)
