package mention

import (
	"strings"

	xerrors "MintRelay/internal/errors"
)

// Status 表示提及在处理流水线中到达的终态。
type Status string

const (
	// StatusMinting 是唯一的非终态：钱包调用已经发出、确认尚未完成。
	StatusMinting        Status = "minting"
	StatusProcessed      Status = "processed"
	StatusMintFailed     Status = "mint_failed"
	StatusInvalidAddress Status = "invalid_address"
	StatusZeroBalance    Status = "zero_balance"
	StatusLowReputation  Status = "low_reputation"
	StatusDuplicate      Status = "duplicate_request"
)

// Terminal 判断状态是否为终态。仅 minting 允许被后续写入覆盖。
func (s Status) Terminal() bool {
	return s != StatusMinting
}

// IsValidStatus 检查给定的状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusMinting, StatusProcessed, StatusMintFailed,
		StatusInvalidAddress, StatusZeroBalance, StatusLowReputation, StatusDuplicate:
		return true
	default:
		return false
	}
}

// Mention 描述一条从社交平台抓取到的提及。抓取后不可变，核心只做引用。
type Mention struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	AuthorID     string `json:"author_id"`
	AuthorHandle string `json:"author_handle"`
}

// Author 记录提及发起人的标识，用于一人一铸的判定。
type Author struct {
	Handle string `json:"handle"`
	ID     string `json:"id"`
}

// Entry 是台账中一条提及的处理记录。除 minting 外一经写入不再覆盖。
type Entry struct {
	Text          string `json:"text"`
	Status        Status `json:"status"`
	MintSucceeded bool   `json:"mint_success"`
	TxHash        string `json:"transaction_hash,omitempty"`
	MintedAddress string `json:"minted_address,omitempty"`
	MintedDomain  string `json:"minted_domain,omitempty"`
	ReplyID       string `json:"reply_id,omitempty"`
	Author        Author `json:"author"`
	ProcessedAt   int64  `json:"processed_at"`
}

// Recorded 将台账键（提及 ID）与记录本身绑定，便于列表展示。
type Recorded struct {
	ID string `json:"id"`
	Entry
}

var (
	// ErrMentionNotFound 表示台账中不存在指定的提及。
	ErrMentionNotFound = xerrors.New(CodeMentionNotFound, "mention not found")
	// ErrMentionProcessed 表示提及已有终态记录，禁止再次写入。
	ErrMentionProcessed = xerrors.New(CodeMentionProcessed, "mention already processed", xerrors.WithSeverity(xerrors.SeverityWarning))
	// ErrLedgerCorrupt 表示持久化文件无法解析。
	ErrLedgerCorrupt = xerrors.New(CodeLedgerCorrupt, "ledger state corrupt", xerrors.WithSeverity(xerrors.SeverityCritical))
)

const (
	CodeMentionNotFound  xerrors.Code = "MENTION_NOT_FOUND"
	CodeMentionProcessed xerrors.Code = "MENTION_ALREADY_PROCESSED"
	CodeLedgerCorrupt    xerrors.Code = "LEDGER_CORRUPT"
)

func init() {
	xerrors.Register(CodeMentionNotFound, xerrors.Attributes{
		Message:   "mention not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeMentionProcessed, xerrors.Attributes{
		Message:   "mention already processed",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeLedgerCorrupt, xerrors.Attributes{
		Message:   "ledger state corrupt",
		Severity:  xerrors.SeverityCritical,
		Retryable: false,
		Alert:     true,
	})
}

// CompareID 比较两个平台分配的十进制提及 ID。
// ID 无前导零，因此先比长度再比字典序即可得到数值序。
func CompareID(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
