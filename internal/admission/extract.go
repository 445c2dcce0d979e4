package admission

import (
	"regexp"
	"strings"
)

// Kind 标记提取结果的类别。
type Kind int

const (
	// KindNoRequest 表示文本中没有任何铸造目标, 这类提及不落账。
	KindNoRequest Kind = iota
	// KindInvalid 表示找到了疑似地址但格式不合法。
	KindInvalid
	// KindValid 表示提取到了合法的地址或可解析的域名。
	KindValid
)

// Extraction 是文本解析阶段的带标签结果。
// 所有正则匹配都收敛在这一层, 后续阶段只消费结构化字段。
type Extraction struct {
	Kind Kind
	// Literal 是原文中匹配到的字面量, 用于错误提示。
	Literal string
	// Address 是直接给出的 0x 地址, 与 Domain 互斥。
	Address string
	// Domain 是待解析的人类可读名称, 例如 alice.eth。
	Domain string
	// TaggedUser 是文本中第一个非机器人的被提及用户, 用于回复的个性化称呼。
	TaggedUser string
}

var (
	// 先宽松匹配任意长度的十六进制, 长度校验留给 validAddress,
	// 这样残缺的地址能落到 invalid_address 而不是被当作噪音忽略。
	addressPattern = regexp.MustCompile(`0x[a-fA-F0-9]+`)
	validAddress   = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	domainPattern  = regexp.MustCompile(`(?i)\b[a-z0-9][a-z0-9-]*(?:\.[a-z0-9-]+)*\.eth\b`)
	handlePattern  = regexp.MustCompile(`@(\w+)`)
)

// Extractor 从提及文本中解析铸造目标。
type Extractor struct {
	botHandle string
}

// NewExtractor 创建解析器, botHandle 用于忽略指向机器人自身的提及记号。
func NewExtractor(botHandle string) *Extractor {
	return &Extractor{botHandle: strings.ToLower(strings.TrimPrefix(botHandle, "@"))}
}

// Extract 扫描文本, 返回第一个地址或域名字面量以及被提及的用户。
// 地址和域名同时出现时, 以出现位置更靠前的为准。
func (e *Extractor) Extract(text string) Extraction {
	result := Extraction{TaggedUser: e.firstTaggedUser(text)}

	addressLoc := addressPattern.FindStringIndex(text)
	domainLoc := domainPattern.FindStringIndex(text)

	switch {
	case addressLoc != nil && (domainLoc == nil || addressLoc[0] < domainLoc[0]):
		address := text[addressLoc[0]:addressLoc[1]]
		result.Literal = address
		if !validAddress.MatchString(address) {
			result.Kind = KindInvalid
			return result
		}
		result.Kind = KindValid
		result.Address = address
	case domainLoc != nil:
		domain := text[domainLoc[0]:domainLoc[1]]
		result.Literal = domain
		result.Kind = KindValid
		result.Domain = strings.ToLower(domain)
	default:
		result.Kind = KindNoRequest
	}
	return result
}

// firstTaggedUser 返回文本中第一个不是机器人自身的被提及用户。
func (e *Extractor) firstTaggedUser(text string) string {
	for _, match := range handlePattern.FindAllStringSubmatch(text, -1) {
		handle := match[1]
		if strings.ToLower(handle) == e.botHandle {
			continue
		}
		return handle
	}
	return ""
}
