package ethereum

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"MintRelay/internal/chain"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// defaultENSRegistry 是主网与各测试网共用的 ENS Registry 地址。
var defaultENSRegistry = common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")

// resolver(bytes32) 与 addr(bytes32) 的函数选择器。
var (
	selectorResolver = crypto.Keccak256([]byte("resolver(bytes32)"))[:4]
	selectorAddr     = crypto.Keccak256([]byte("addr(bytes32)"))[:4]
)

// Resolve 将 ENS 域名解析为地址。无解析器或解析为零地址时
// 返回 chain.ErrNameNotFound。
func (c *Client) Resolve(ctx context.Context, name string) (string, error) {
	if c == nil || c.eth == nil {
		return "", errors.New("未初始化的以太坊客户端")
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", chain.ErrNameNotFound
	}

	node := namehash(name)

	// 第一步：向 Registry 查询该域名的解析器合约。
	resolverAddr, err := c.callForAddress(ctx, c.ensRegistry, selectorResolver, node)
	if err != nil {
		return "", fmt.Errorf("查询 ENS 解析器失败: %w", err)
	}
	if resolverAddr == (common.Address{}) {
		return "", chain.ErrNameNotFound
	}

	// 第二步：向解析器查询地址记录。
	resolved, err := c.callForAddress(ctx, resolverAddr, selectorAddr, node)
	if err != nil {
		return "", fmt.Errorf("查询 ENS 地址记录失败: %w", err)
	}
	if resolved == (common.Address{}) {
		return "", chain.ErrNameNotFound
	}
	return resolved.Hex(), nil
}

// callForAddress 执行一次返回单个地址的 eth_call。
func (c *Client) callForAddress(ctx context.Context, target common.Address, selector []byte, node common.Hash) (common.Address, error) {
	input := make([]byte, 0, 36)
	input = append(input, selector...)
	input = append(input, node.Bytes()...)

	output, err := c.eth.CallContract(ctx, gethcore.CallMsg{To: &target, Data: input}, nil)
	if err != nil {
		return common.Address{}, err
	}
	if len(output) < 32 {
		return common.Address{}, nil
	}
	return common.BytesToAddress(output[12:32]), nil
}

// namehash 实现 EIP-137 的递归哈希。
func namehash(name string) common.Hash {
	node := common.Hash{}
	if name == "" {
		return node
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		node = common.BytesToHash(crypto.Keccak256(node.Bytes(), labelHash))
	}
	return node
}
