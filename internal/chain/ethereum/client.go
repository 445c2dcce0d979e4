package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"MintRelay/internal/chain"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// erc721ABI 仅包含铸造流程需要读取的方法。
const erc721ABI = `[
  {"constant":true,"inputs":[{"name":"tokenId","type":"uint256"}],"name":"tokenURI","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"}
]`

// Config describes how to construct an EVM compatible reader.
type Config struct {
	RPCURL      string
	ENSRegistry string
}

// Client implements chain.Reader and chain.Resolver against an EVM node.
type Client struct {
	rpcClient   *gethrpc.Client
	eth         *ethclient.Client
	erc721      abi.ABI
	ensRegistry common.Address
}

// NewClient dials the configured RPC endpoint and returns a ready-to-use client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置以太坊 RPC 地址")
	}

	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接以太坊节点失败: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(erc721ABI))
	if err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("解析 ERC-721 ABI 失败: %w", err)
	}

	registry := defaultENSRegistry
	if reg := strings.TrimSpace(cfg.ENSRegistry); reg != "" {
		if !common.IsHexAddress(reg) {
			rpcClient.Close()
			return nil, fmt.Errorf("非法的 ENS Registry 地址: %s", reg)
		}
		registry = common.HexToAddress(reg)
	}

	return &Client{
		rpcClient:   rpcClient,
		eth:         ethclient.NewClient(rpcClient),
		erc721:      parsed,
		ensRegistry: registry,
	}, nil
}

// Close releases network connections held by the client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
		c.rpcClient = nil
		c.eth = nil
	}
}

// BalanceAt 查询地址的原生币余额。
func (c *Client) BalanceAt(ctx context.Context, address string) (*big.Int, error) {
	if c == nil || c.eth == nil {
		return nil, errors.New("未初始化的以太坊客户端")
	}
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("非法的以太坊地址: %s", address)
	}
	balance, err := c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("查询余额失败: %w", err)
	}
	return balance, nil
}

// TransactionReceipt 查询交易回执。交易尚未被索引时返回 chain.ErrReceiptNotFound。
func (c *Client) TransactionReceipt(ctx context.Context, txHash string) (*chain.Receipt, error) {
	if c == nil || c.eth == nil {
		return nil, errors.New("未初始化的以太坊客户端")
	}
	receipt, err := c.eth.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, gethcore.NotFound) {
			return nil, chain.ErrReceiptNotFound
		}
		return nil, fmt.Errorf("查询交易回执失败: %w", err)
	}

	logs := make([]chain.Log, 0, len(receipt.Logs))
	for _, entry := range receipt.Logs {
		topics := make([]string, 0, len(entry.Topics))
		for _, topic := range entry.Topics {
			topics = append(topics, topic.Hex())
		}
		logs = append(logs, chain.Log{
			Address: entry.Address.Hex(),
			Topics:  topics,
		})
	}
	return &chain.Receipt{Status: receipt.Status, Logs: logs}, nil
}

// TokenURI 调用 ERC-721 合约读取代币的元数据地址。
func (c *Client) TokenURI(ctx context.Context, contract string, tokenID *big.Int) (string, error) {
	if c == nil || c.eth == nil {
		return "", errors.New("未初始化的以太坊客户端")
	}
	if !common.IsHexAddress(contract) {
		return "", fmt.Errorf("非法的合约地址: %s", contract)
	}
	if tokenID == nil {
		return "", errors.New("tokenID 不能为空")
	}

	input, err := c.erc721.Pack("tokenURI", tokenID)
	if err != nil {
		return "", fmt.Errorf("编码 tokenURI 调用失败: %w", err)
	}

	target := common.HexToAddress(contract)
	output, err := c.eth.CallContract(ctx, gethcore.CallMsg{To: &target, Data: input}, nil)
	if err != nil {
		return "", fmt.Errorf("调用 tokenURI 失败: %w", err)
	}

	results, err := c.erc721.Unpack("tokenURI", output)
	if err != nil {
		return "", fmt.Errorf("解码 tokenURI 返回值失败: %w", err)
	}
	if len(results) != 1 {
		return "", errors.New("tokenURI 返回值数量异常")
	}
	uri, ok := results[0].(string)
	if !ok {
		return "", errors.New("tokenURI 返回值类型异常")
	}
	return uri, nil
}

// ensure interface compliance at compile time
var (
	_ chain.Reader   = (*Client)(nil)
	_ chain.Resolver = (*Client)(nil)
)
