package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Config 描述了 MintRelay 在启动阶段需要加载的核心配置。
type Config struct {
	Server     ServerConfig     `json:"server"`
	Logging    LoggingConfig    `json:"logging"`
	Ledger     LedgerConfig     `json:"ledger"`
	Social     SocialConfig     `json:"social"`
	Chain      ChainConfig      `json:"chain"`
	Wallet     WalletConfig     `json:"wallet"`
	Reputation ReputationConfig `json:"reputation"`
	Reply      ReplyConfig      `json:"reply"`
	Alerting   AlertingConfig   `json:"alerting"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Runtime    RuntimeConfig    `json:"runtime"`
}

// ServerConfig 控制运维 API 服务的监听地址等参数。
type ServerConfig struct {
	Address string `json:"address"`
}

// LoggingConfig 控制结构化日志与审计日志的输出。
type LoggingConfig struct {
	Level        string   `json:"level"`
	Format       string   `json:"format"`
	OutputPaths  []string `json:"output_paths"`
	AuditEnabled bool     `json:"audit_enabled"`
	AuditPath    string   `json:"audit_path"`
}

// LedgerConfig 描述提及台账的持久化后端。
type LedgerConfig struct {
	Driver string `json:"driver"`
	Path   string `json:"path"`
	DSN    string `json:"dsn"`
}

// SocialConfig 描述社交平台接口的访问方式。
type SocialConfig struct {
	BaseURL      string `json:"base_url"`
	BearerToken  string `json:"bearer_token"`
	TokenEnv     string `json:"token_env"`
	AccountID    string `json:"account_id"`
	BotHandle    string `json:"bot_handle"`
	PageSize     int    `json:"page_size"`
	FixturePath  string `json:"fixture_path"`
	DebugFixture bool   `json:"debug_fixture"`
}

// ChainConfig 包含访问区块链节点所需的 RPC 地址与铸造合约。
type ChainConfig struct {
	RPCURL      string `json:"rpc_url"`
	NFTContract string `json:"nft_contract"`
	ENSRegistry string `json:"ens_registry"`
	ExplorerURL string `json:"explorer_url"`
}

// WalletConfig 描述外部托管钱包服务的调用方式。
type WalletConfig struct {
	BaseURL   string `json:"base_url"`
	APIKey    string `json:"api_key"`
	APIKeyEnv string `json:"api_key_env"`
	AssetID   string `json:"asset_id"`
	TimeoutS  int    `json:"timeout_seconds"`
}

// ReputationConfig 描述信誉评分服务及其可选的 Redis 缓存。
type ReputationConfig struct {
	BaseURL   string      `json:"base_url"`
	Threshold int         `json:"threshold"`
	Cache     RedisConfig `json:"cache"`
}

// RedisConfig 描述 Redis 连接参数。
type RedisConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// ReplyConfig 控制回复文案的生成与图片转换。
type ReplyConfig struct {
	TemplatesPath string       `json:"templates_path"`
	LLM           LLMConfig    `json:"llm"`
	Converter     RenderConfig `json:"converter"`
}

// LLMConfig 用于配置大模型润色回复文案的调用方式。
type LLMConfig struct {
	Provider  string `json:"provider"`
	APIKey    string `json:"api_key"`
	APIKeyEnv string `json:"api_key_env"`
	BaseURL   string `json:"base_url"`
	Model     string `json:"model"`
	TimeoutS  int    `json:"timeout_seconds"`
}

// Timeout 返回大模型调用的超时时间。
func (c LLMConfig) Timeout() time.Duration {
	if c.TimeoutS <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutS) * time.Second
}

// RenderConfig 描述 SVG 转 PNG 所使用的外部转换器。
type RenderConfig struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// AlertingConfig 描述告警通知渠道。
type AlertingConfig struct {
	RabbitMQ RabbitMQConfig `json:"rabbitmq"`
}

// RabbitMQConfig 描述 RabbitMQ 告警队列的连接参数。
type RabbitMQConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Queue   string `json:"queue"`
	Durable bool   `json:"durable"`
}

// SchedulerConfig 控制轮询调度器的节奏与确认重试参数。
type SchedulerConfig struct {
	IntervalSeconds     int    `json:"interval_seconds"`
	ConfirmAttempts     int    `json:"confirm_attempts"`
	ConfirmDelaySeconds int    `json:"confirm_delay_seconds"`
	AdminAuthorID       string `json:"admin_author_id"`
}

// Interval 返回两个批次之间的休眠时间。非正值表示只跑一个批次。
func (c SchedulerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// ConfirmDelay 返回两次回执查询之间的固定间隔。
func (c SchedulerConfig) ConfirmDelay() time.Duration {
	if c.ConfirmDelaySeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.ConfirmDelaySeconds) * time.Second
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir"`
}

// 原始部署使用的铸造合约地址，作为未配置时的默认值。
const defaultNFTContract = "0x4B9523186371F5a805d2EF882Cf0c6a52120deF8"

// Load 负责解析指定路径的 JSON 配置文件。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	return &cfg, nil
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}

	if c.Ledger.Driver == "" {
		c.Ledger.Driver = "file"
	}

	if c.Social.BaseURL == "" {
		c.Social.BaseURL = "https://api.twitter.com/2"
	}
	if c.Social.PageSize <= 0 {
		c.Social.PageSize = 25
	}

	if c.Chain.NFTContract == "" {
		c.Chain.NFTContract = defaultNFTContract
	}

	if c.Reputation.Threshold == 0 {
		c.Reputation.Threshold = 20
	}
	if c.Reputation.Cache.TTLSeconds <= 0 {
		c.Reputation.Cache.TTLSeconds = 600
	}

	if c.Scheduler.IntervalSeconds == 0 {
		c.Scheduler.IntervalSeconds = 300
	}
	if c.Scheduler.ConfirmAttempts <= 0 {
		c.Scheduler.ConfirmAttempts = 3
	}
	if c.Scheduler.ConfirmDelaySeconds <= 0 {
		c.Scheduler.ConfirmDelaySeconds = 20
	}

	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else if !filepath.IsAbs(c.Runtime.DataDir) {
		c.Runtime.DataDir = filepath.Join(baseDir, c.Runtime.DataDir)
	}

	if c.Ledger.Driver == "file" && c.Ledger.Path == "" {
		c.Ledger.Path = filepath.Join(c.Runtime.DataDir, "mention_memory.json")
	} else if c.Ledger.Path != "" && !filepath.IsAbs(c.Ledger.Path) {
		c.Ledger.Path = filepath.Join(baseDir, c.Ledger.Path)
	}

	if c.Reply.TemplatesPath != "" && !filepath.IsAbs(c.Reply.TemplatesPath) {
		c.Reply.TemplatesPath = filepath.Join(baseDir, c.Reply.TemplatesPath)
	}
	if c.Social.FixturePath != "" && !filepath.IsAbs(c.Social.FixturePath) {
		c.Social.FixturePath = filepath.Join(baseDir, c.Social.FixturePath)
	}
}
