package mint

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"MintRelay/internal/chain"
	xerrors "MintRelay/internal/errors"
	"MintRelay/internal/wallet"
	"MintRelay/pkg/logger"
)

// mintMethod 是铸造合约上实际被调用的方法名。
const mintMethod = "mintTo"

// Result 汇总一次铸造及其确认过程的最终信息。
// Confirmed 为 false 表示交易失败或在重试预算内未能确认。
type Result struct {
	TxHash          string
	TxLink          string
	Confirmed       bool
	TokenID         *big.Int
	ContractAddress string
	TokenName       string
	ArtifactSVG     []byte
}

// Executor 负责调用钱包服务发起铸造, 并以有限次数轮询回执直到确认。
// 钱包调用只会发起一次, 重复调用会造成重复铸造。
type Executor struct {
	invoker  wallet.Invoker
	reader   chain.Reader
	fetcher  *MetadataFetcher
	contract string
	attempts int
	delay    time.Duration
}

// NewExecutor 创建铸造执行器。attempts 与 delay 控制回执轮询的重试预算。
func NewExecutor(invoker wallet.Invoker, reader chain.Reader, fetcher *MetadataFetcher, contract string, attempts int, delay time.Duration) (*Executor, error) {
	if invoker == nil {
		return nil, errors.New("未提供钱包调用客户端")
	}
	if reader == nil {
		return nil, errors.New("未提供链上读取客户端")
	}
	if strings.TrimSpace(contract) == "" {
		return nil, errors.New("未配置铸造合约地址")
	}
	if fetcher == nil {
		fetcher = NewMetadataFetcher(0)
	}
	if attempts <= 0 {
		attempts = 3
	}
	if delay <= 0 {
		delay = 20 * time.Second
	}
	return &Executor{
		invoker:  invoker,
		reader:   reader,
		fetcher:  fetcher,
		contract: contract,
		attempts: attempts,
		delay:    delay,
	}, nil
}

// Execute 对指定地址发起一次铸造并等待确认。
// onSubmitted 在交易提交成功后、确认开始前被调用,
// 调用方可借此先落一条临时台账记录, 缩小崩溃窗口。
func (e *Executor) Execute(ctx context.Context, address string, onSubmitted func(tx *wallet.PendingTransaction) error) (*Result, error) {
	tx, err := e.invoker.Invoke(ctx, e.contract, mintMethod, map[string]string{"to": address}, "0")
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeWalletFailure, err, "发起铸造交易失败")
	}

	logger.Audit().Info("铸造交易已提交",
		"address", address,
		"contract", e.contract,
		"tx_hash", tx.Hash,
	)

	if onSubmitted != nil {
		if err := onSubmitted(tx); err != nil {
			logger.L().Error("写入临时铸造记录失败", "tx_hash", tx.Hash, "error", err)
		}
	}

	return e.confirm(ctx, tx)
}

// confirm 轮询交易回执, 最多 attempts 次, 每次间隔固定 delay。
// 没有拿到正向确认一律按未确认处理。
func (e *Executor) confirm(ctx context.Context, tx *wallet.PendingTransaction) (*Result, error) {
	result := &Result{TxHash: tx.Hash, TxLink: tx.Link}

	var receipt *chain.Receipt
	for attempt := 1; attempt <= e.attempts; attempt++ {
		got, err := e.reader.TransactionReceipt(ctx, tx.Hash)
		if err == nil {
			receipt = got
			break
		}
		if !errors.Is(err, chain.ErrReceiptNotFound) {
			logger.L().Warn("查询交易回执失败",
				"tx_hash", tx.Hash,
				"attempt", attempt,
				"error", err,
			)
		}
		if attempt == e.attempts {
			break
		}
		if err := sleepCtx(ctx, e.delay); err != nil {
			return nil, err
		}
	}

	if receipt == nil {
		logger.L().Warn("重试预算耗尽仍未拿到交易回执", "tx_hash", tx.Hash, "attempts", e.attempts)
		return result, nil
	}
	if !receipt.Succeeded() {
		// 已失败的交易不会再成功, 不继续轮询
		logger.L().Warn("铸造交易执行失败", "tx_hash", tx.Hash)
		return result, nil
	}

	tokenID, contractAddr, err := extractMintEvent(receipt)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "解析铸造回执失败")
	}
	result.Confirmed = true
	result.TokenID = tokenID
	result.ContractAddress = contractAddr

	uri, err := e.reader.TokenURI(ctx, contractAddr, tokenID)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "读取 tokenURI 失败")
	}

	meta, err := e.fetcher.Fetch(ctx, uri)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "拉取作品元数据失败")
	}
	result.TokenName = meta.Name

	svg, err := e.fetcher.Artifact(ctx, meta)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeChainFailure, err, "拉取作品图片失败")
	}
	result.ArtifactSVG = svg

	logger.Audit().Info("铸造交易已确认",
		"tx_hash", tx.Hash,
		"token_id", tokenID.String(),
		"contract", contractAddr,
	)
	return result, nil
}

// extractMintEvent 从回执最后一条日志中取出新铸 token 的编号。
// 约定 token id 编码在该日志的最后一个 topic 中。
func extractMintEvent(receipt *chain.Receipt) (*big.Int, string, error) {
	if len(receipt.Logs) == 0 {
		return nil, "", errors.New("回执中没有事件日志")
	}
	last := receipt.Logs[len(receipt.Logs)-1]
	if len(last.Topics) == 0 {
		return nil, "", errors.New("铸造事件缺少 topics")
	}

	topic := strings.TrimPrefix(last.Topics[len(last.Topics)-1], "0x")
	tokenID, ok := new(big.Int).SetString(topic, 16)
	if !ok {
		return nil, "", fmt.Errorf("无法解析 token id topic: %s", topic)
	}
	return tokenID, last.Address, nil
}

// sleepCtx 在等待期间响应取消信号。
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
