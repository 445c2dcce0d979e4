package mention

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"strings"
	"time"

	xerrors "MintRelay/internal/errors"
	"github.com/go-sql-driver/mysql"
)

// MySQLLedger 使用 MySQL 记录提及台账，适合多实例部署共享状态的场景。
// 事务保证与文件台账相同的写前检查语义。
type MySQLLedger struct {
	db *sql.DB
}

// NewMySQLLedger 创建一个新的 MySQLLedger。
func NewMySQLLedger(dsn string) (*MySQLLedger, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 MySQL 失败")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "无法连接到 MySQL")
	}

	ledger := &MySQLLedger{db: db}
	if err := ledger.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ledger, nil
}

func (s *MySQLLedger) initSchema() error {
	const ledgerSchema = `CREATE TABLE IF NOT EXISTS mention_ledger (
        id VARCHAR(32) PRIMARY KEY,
        text TEXT NOT NULL,
        status VARCHAR(32) NOT NULL,
        mint_success TINYINT(1) NOT NULL DEFAULT 0,
        tx_hash VARCHAR(66) DEFAULT '',
        minted_address VARCHAR(64) DEFAULT '',
        minted_domain VARCHAR(255) DEFAULT '',
        reply_id VARCHAR(32) DEFAULT '',
        author_id VARCHAR(32) NOT NULL DEFAULT '',
        author_handle VARCHAR(64) NOT NULL DEFAULT '',
        processed_at BIGINT NOT NULL,
        INDEX idx_mention_author (author_id),
        INDEX idx_mention_address (minted_address),
        INDEX idx_mention_status (status)
)`
	const checkpointSchema = `CREATE TABLE IF NOT EXISTS mention_checkpoint (
        id TINYINT PRIMARY KEY,
        last_tweet_id VARCHAR(32) NOT NULL DEFAULT ''
)`

	if _, err := s.db.Exec(ledgerSchema); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化 mention_ledger 表失败")
	}
	if _, err := s.db.Exec(checkpointSchema); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化 mention_checkpoint 表失败")
	}
	if _, err := s.db.Exec(`ALTER TABLE mention_ledger ADD COLUMN minted_domain VARCHAR(255) DEFAULT '' AFTER minted_address`); err != nil {
		var mysqlErr *mysql.MySQLError
		if !(stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1060) {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "扩展 mention_ledger.minted_domain 失败")
		}
	}
	return nil
}

// IsProcessed 实现 Ledger 接口。
func (s *MySQLLedger) IsProcessed(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM mention_ledger WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询提及记录失败")
	}
	return true, nil
}

// Record 在事务内完成写前检查与插入/覆盖。
func (s *MySQLLedger) Record(ctx context.Context, id string, entry Entry) error {
	if id == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "提及 ID 不能为空")
	}
	if !IsValidStatus(entry.Status) {
		return xerrors.New(xerrors.CodeInvalidArgument, "不支持的台账状态: "+string(entry.Status))
	}
	if entry.ProcessedAt == 0 {
		entry.ProcessedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "开启事务失败")
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM mention_ledger WHERE id = ? FOR UPDATE`, id).Scan(&status)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx, `INSERT INTO mention_ledger
            (id, text, status, mint_success, tx_hash, minted_address, minted_domain, reply_id, author_id, author_handle, processed_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, entry.Text, string(entry.Status), entry.MintSucceeded, entry.TxHash,
			entry.MintedAddress, entry.MintedDomain, entry.ReplyID,
			entry.Author.ID, entry.Author.Handle, entry.ProcessedAt)
		if err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "插入提及记录失败")
		}
	case err != nil:
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询提及记录失败")
	default:
		if Status(status).Terminal() {
			return ErrMentionProcessed
		}
		_, err = tx.ExecContext(ctx, `UPDATE mention_ledger SET
            text = ?, status = ?, mint_success = ?, tx_hash = ?, minted_address = ?,
            minted_domain = ?, reply_id = ?, author_id = ?, author_handle = ?, processed_at = ?
            WHERE id = ?`,
			entry.Text, string(entry.Status), entry.MintSucceeded, entry.TxHash, entry.MintedAddress,
			entry.MintedDomain, entry.ReplyID, entry.Author.ID, entry.Author.Handle, entry.ProcessedAt, id)
		if err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "更新提及记录失败")
		}
	}

	if err := tx.Commit(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "提交提及记录失败")
	}
	return nil
}

// Checkpoint 返回当前游标。
func (s *MySQLLedger) Checkpoint(ctx context.Context) (string, error) {
	var checkpoint string
	err := s.db.QueryRowContext(ctx, `SELECT last_tweet_id FROM mention_checkpoint WHERE id = 1`).Scan(&checkpoint)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询游标失败")
	}
	return checkpoint, nil
}

// AdvanceCheckpoint 在事务内做严格变大检查后更新游标。
func (s *MySQLLedger) AdvanceCheckpoint(ctx context.Context, maxIDSeen string) error {
	if maxIDSeen == "" {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "开启事务失败")
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT last_tweet_id FROM mention_checkpoint WHERE id = 1 FOR UPDATE`).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx, `INSERT INTO mention_checkpoint (id, last_tweet_id) VALUES (1, ?)`, maxIDSeen); err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入游标失败")
		}
	case err != nil:
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询游标失败")
	default:
		if current != "" && CompareID(maxIDSeen, current) <= 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `UPDATE mention_checkpoint SET last_tweet_id = ? WHERE id = 1`, maxIDSeen); err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "更新游标失败")
		}
	}

	if err := tx.Commit(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "提交游标失败")
	}
	return nil
}

// FindPriorMint 按作者 ID 或目标地址查找已成功的铸造。
func (s *MySQLLedger) FindPriorMint(ctx context.Context, authorID, address string) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM mention_ledger
        WHERE mint_success = 1 AND (author_id = ? OR LOWER(minted_address) = LOWER(?))
        LIMIT 1`, authorID, address).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询历史铸造失败")
	}
	return id, true, nil
}

// Get 返回指定提及的记录。
func (s *MySQLLedger) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT text, status, mint_success, tx_hash, minted_address,
        minted_domain, reply_id, author_id, author_handle, processed_at
        FROM mention_ledger WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrMentionNotFound
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询提及记录失败")
	}
	return entry, nil
}

// List 返回符合过滤条件的记录。
func (s *MySQLLedger) List(ctx context.Context, opts ListOptions) ([]*Recorded, error) {
	opts.applyDefaults()

	query := `SELECT id, text, status, mint_success, tx_hash, minted_address,
        minted_domain, reply_id, author_id, author_handle, processed_at FROM mention_ledger`
	var args []any
	var conds []string
	if len(opts.Statuses) > 0 {
		placeholders := make([]string, len(opts.Statuses))
		for i, status := range opts.Statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		conds = append(conds, "status IN ("+strings.Join(placeholders, ",")+")")
	}
	if opts.MintSuccess != nil {
		conds = append(conds, "mint_success = ?")
		args = append(args, *opts.MintSuccess)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if opts.Order == SortByProcessedAsc {
		query += " ORDER BY processed_at ASC, id ASC"
	} else {
		query += " ORDER BY processed_at DESC, id DESC"
	}
	query += " LIMIT ?"
	args = append(args, opts.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询台账列表失败")
	}
	defer rows.Close()

	var results []*Recorded
	for rows.Next() {
		var rec Recorded
		if err := rows.Scan(&rec.ID, &rec.Text, &rec.Status, &rec.MintSucceeded, &rec.TxHash,
			&rec.MintedAddress, &rec.MintedDomain, &rec.ReplyID,
			&rec.Author.ID, &rec.Author.Handle, &rec.ProcessedAt); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "扫描台账记录失败")
		}
		results = append(results, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历台账记录失败")
	}
	return results, nil
}

// Stats 统计符合过滤条件的记录数量。
func (s *MySQLLedger) Stats(ctx context.Context, opts ListOptions) (LedgerStats, error) {
	// 统计口径与内存实现保持一致，直接在应用层聚合。
	opts.applyDefaults()
	opts.Limit = 1 << 20

	records, err := s.List(ctx, opts)
	if err != nil {
		return LedgerStats{}, err
	}
	stats := LedgerStats{}
	for _, rec := range records {
		entry := rec.Entry
		stats.observe(&entry)
	}
	return stats, nil
}

// Close 关闭数据库连接。
func (s *MySQLLedger) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var entry Entry
	if err := row.Scan(&entry.Text, &entry.Status, &entry.MintSucceeded, &entry.TxHash,
		&entry.MintedAddress, &entry.MintedDomain, &entry.ReplyID,
		&entry.Author.ID, &entry.Author.Handle, &entry.ProcessedAt); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ensure interface compliance at compile time
var _ Ledger = (*MySQLLedger)(nil)
