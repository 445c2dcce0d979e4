package reply

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"MintRelay/internal/llm"
)

// templateSet 保存每种处理结果对应的回复模板。
// 模板中可以使用 {handle}、{name}、{tx_link}、{address} 占位符。
type templateSet map[llm.Outcome][]string

// defaultTemplates 是内置的回复文案, 在未提供模板文件时使用。
var defaultTemplates = templateSet{
	llm.OutcomeMinted: {
		"@{handle} your {name} has been minted! View the transaction here: {tx_link}",
	},
	llm.OutcomeMintFailed: {
		"@{handle} sorry, something went wrong while minting your NFT. Please try again later.",
	},
	llm.OutcomeInvalidTarget: {
		"@{handle} I couldn't make sense of {address}. Double-check the address or name and mention me again.",
	},
	llm.OutcomeZeroBalance: {
		"@{handle} the wallet {address} is running on pure vibes, zero balance detected. Feed it some ETH and try again!",
	},
	llm.OutcomeLowReputation: {
		"@{handle} that address doesn't meet the eligibility bar for a mint right now.",
	},
	llm.OutcomeDuplicate: {
		"@{handle} you or this address already received a mint. One per customer!",
	},
}

// templatesFile 对应模板 YAML 文件的结构, 键为处理结果名称。
type templatesFile struct {
	Templates map[string][]string `yaml:"templates"`
}

// loadTemplates 读取 YAML 模板文件并与内置模板合并, 文件中的条目优先。
func loadTemplates(path string) (templateSet, error) {
	merged := make(templateSet, len(defaultTemplates))
	for outcome, texts := range defaultTemplates {
		merged[outcome] = texts
	}
	if strings.TrimSpace(path) == "" {
		return merged, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取回复模板文件失败: %w", err)
	}

	var parsed templatesFile
	if err := yaml.Unmarshal(content, &parsed); err != nil {
		return nil, fmt.Errorf("解析回复模板文件失败: %w", err)
	}

	for key, texts := range parsed.Templates {
		if len(texts) == 0 {
			continue
		}
		merged[llm.Outcome(key)] = texts
	}
	return merged, nil
}

// renderTemplate 将占位符替换为实际内容。
func renderTemplate(text string, req llm.Request) string {
	replacer := strings.NewReplacer(
		"{handle}", strings.TrimPrefix(req.Handle, "@"),
		"{name}", req.TokenName,
		"{tx_link}", req.TxLink,
		"{address}", req.Target,
	)
	return strings.TrimSpace(replacer.Replace(text))
}
