package mention

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	xerrors "MintRelay/internal/errors"
)

// ledgerState 是持久化文件的整体结构，每次变更整体重写。
type ledgerState struct {
	Mentions    map[string]*Entry `json:"mentions"`
	LastTweetID *string           `json:"last_tweet_id"`
}

// FileLedger 用单个 JSON 文件保存台账。内存中的 map 是唯一事实来源，
// 每次变更通过写临时文件再重命名的方式原子落盘，返回前完成刷盘。
type FileLedger struct {
	mu         sync.RWMutex
	path       string
	entries    map[string]*Entry
	checkpoint string
}

// NewFileLedger 打开（或新建）指定路径的台账文件。
func NewFileLedger(path string) (*FileLedger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "台账文件路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "创建台账目录失败")
	}

	ledger := &FileLedger{path: path, entries: make(map[string]*Entry)}
	if err := ledger.load(); err != nil {
		return nil, err
	}
	return ledger, nil
}

func (f *FileLedger) load() error {
	content, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取台账文件失败")
	}
	if len(content) == 0 {
		return nil
	}

	var state ledgerState
	if err := json.Unmarshal(content, &state); err != nil {
		return xerrors.Wrap(CodeLedgerCorrupt, err, "解析台账文件失败")
	}
	if state.Mentions != nil {
		f.entries = state.Mentions
	}
	if state.LastTweetID != nil {
		f.checkpoint = *state.LastTweetID
	}
	return nil
}

// persist 将整个台账写入临时文件并重命名覆盖，保证崩溃不会破坏旧数据。
// 调用方必须持有写锁。
func (f *FileLedger) persist() error {
	state := ledgerState{Mentions: f.entries}
	if f.checkpoint != "" {
		checkpoint := f.checkpoint
		state.LastTweetID = &checkpoint
	}

	content, err := json.MarshalIndent(&state, "", "  ")
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化台账失败")
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "创建台账临时文件失败")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入台账临时文件失败")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "刷盘台账临时文件失败")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "关闭台账临时文件失败")
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("替换台账文件 %s 失败", f.path))
	}
	return nil
}

// IsProcessed 实现 Ledger 接口。
func (f *FileLedger) IsProcessed(_ context.Context, id string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.entries[id]
	return ok, nil
}

// Record 写入记录并立即落盘。终态记录不会被覆盖。
func (f *FileLedger) Record(_ context.Context, id string, entry Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "提及 ID 不能为空")
	}
	if !IsValidStatus(entry.Status) {
		return xerrors.New(xerrors.CodeInvalidArgument, "不支持的台账状态: "+string(entry.Status))
	}
	existing, ok := f.entries[id]
	if ok && existing.Status.Terminal() {
		return ErrMentionProcessed
	}
	if entry.ProcessedAt == 0 {
		entry.ProcessedAt = time.Now().Unix()
	}
	clone := entry
	f.entries[id] = &clone
	if err := f.persist(); err != nil {
		// 落盘失败时回滚内存状态，保持内存与文件一致。
		if ok {
			f.entries[id] = existing
		} else {
			delete(f.entries, id)
		}
		return err
	}
	return nil
}

// Checkpoint 返回当前游标。
func (f *FileLedger) Checkpoint(_ context.Context) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.checkpoint, nil
}

// AdvanceCheckpoint 仅在严格变大时推进游标并落盘。
func (f *FileLedger) AdvanceCheckpoint(_ context.Context, maxIDSeen string) error {
	if maxIDSeen == "" {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkpoint != "" && CompareID(maxIDSeen, f.checkpoint) <= 0 {
		return nil
	}
	previous := f.checkpoint
	f.checkpoint = maxIDSeen
	if err := f.persist(); err != nil {
		f.checkpoint = previous
		return err
	}
	return nil
}

// FindPriorMint 按作者或地址（忽略大小写）查找已成功的铸造。
func (f *FileLedger) FindPriorMint(_ context.Context, authorID, address string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for id, entry := range f.entries {
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
func (f *FileLedger) Get(_ context.Context, id string) (*Entry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.entries[id]
	if !ok {
		return nil, ErrMentionNotFound
	}
	clone := *entry
	return &clone, nil
}

// List 返回符合过滤条件的记录。
func (f *FileLedger) List(_ context.Context, opts ListOptions) ([]*Recorded, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	opts.applyDefaults()

	results := make([]*Recorded, 0, len(f.entries))
	for id, entry := range f.entries {
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
func (f *FileLedger) Stats(_ context.Context, opts ListOptions) (LedgerStats, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	opts.applyDefaults()

	stats := LedgerStats{}
	for _, entry := range f.entries {
		if !matchesListFilters(entry, opts) {
			continue
		}
		stats.observe(entry)
	}
	return stats, nil
}

// Pending 返回仍处于 minting 状态的提及，供重启后的对账检查。
func (f *FileLedger) Pending() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var ids []string
	for id, entry := range f.entries {
		if entry.Status == StatusMinting {
			ids = append(ids, id)
		}
	}
	return ids
}

// Close 做最后一次落盘。
func (f *FileLedger) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.persist()
}

// ensure interface compliance at compile time
var _ Ledger = (*FileLedger)(nil)
