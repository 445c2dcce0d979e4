package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"MintRelay/internal/admission"
	"MintRelay/internal/api"
	"MintRelay/internal/chain/ethereum"
	"MintRelay/internal/config"
	"MintRelay/internal/llm"
	"MintRelay/internal/llm/openai"
	"MintRelay/internal/mention"
	"MintRelay/internal/mint"
	"MintRelay/internal/observability/alerting"
	"MintRelay/internal/render"
	"MintRelay/internal/reply"
	"MintRelay/internal/reputation"
	"MintRelay/internal/scheduler"
	"MintRelay/internal/social"
	"MintRelay/internal/social/twitter"
	"MintRelay/internal/wallet"
	"MintRelay/pkg/logger"
)

// main 是 MintRelay 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("mintrelayd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("MINTRELAY_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "mintrelay.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled: cfg.Logging.AuditEnabled,
			Path:    cfg.Logging.AuditPath,
		},
	}); err != nil {
		return err
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			log.Printf("刷新日志失败: %v", err)
		}
	}()

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return err
	}

	// 台账是去重的唯一事实来源, 退出前必须落盘。
	ledger, err := createLedger(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			logger.L().Error("关闭台账失败", "error", err)
		}
	}()

	chainClient, err := ethereum.NewClient(ctx, ethereum.Config{
		RPCURL:      cfg.Chain.RPCURL,
		ENSRegistry: cfg.Chain.ENSRegistry,
	})
	if err != nil {
		return err
	}
	defer chainClient.Close()

	walletClient, err := wallet.NewClient(wallet.Config{
		BaseURL: cfg.Wallet.BaseURL,
		APIKey:  resolveSecret(cfg.Wallet.APIKey, cfg.Wallet.APIKeyEnv),
		AssetID: cfg.Wallet.AssetID,
		Timeout: time.Duration(cfg.Wallet.TimeoutS) * time.Second,
	})
	if err != nil {
		return err
	}

	scorer, closeScorer, err := createScorer(cfg)
	if err != nil {
		return err
	}
	defer closeScorer()

	socialClient, err := createSocialClient(cfg)
	if err != nil {
		return err
	}

	alerts, err := createAlerts(cfg)
	if err != nil {
		return err
	}
	defer alerts.Close()

	composer, err := createComposer(cfg, socialClient)
	if err != nil {
		return err
	}

	executor, err := mint.NewExecutor(
		walletClient,
		chainClient,
		mint.NewMetadataFetcher(0),
		cfg.Chain.NFTContract,
		cfg.Scheduler.ConfirmAttempts,
		cfg.Scheduler.ConfirmDelay(),
	)
	if err != nil {
		return err
	}

	pipeline, err := admission.NewPipeline(admission.Options{
		Ledger:        ledger,
		Extractor:     admission.NewExtractor(cfg.Social.BotHandle),
		Resolver:      chainClient,
		Reader:        chainClient,
		Scorer:        scorer,
		Executor:      executor,
		Composer:      composer,
		Alerts:        alerts,
		Threshold:     cfg.Reputation.Threshold,
		AdminAuthorID: cfg.Scheduler.AdminAuthorID,
	})
	if err != nil {
		return err
	}

	sched, err := scheduler.New(
		socialClient,
		pipeline,
		ledger,
		alerts,
		cfg.Scheduler.Interval(),
		cfg.Social.PageSize,
	)
	if err != nil {
		return err
	}

	schedDone := make(chan error, 1)
	go func() {
		schedDone <- sched.Run(ctx)
	}()

	server := api.NewServer(cfg.Server.Address, ledger)
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start(ctx)
	}()

	select {
	case err := <-schedDone:
		return err
	case err := <-serverDone:
		return err
	}
}

// createLedger 按配置选择文件或 MySQL 台账后端。
func createLedger(cfg *config.Config) (mention.Ledger, error) {
	switch cfg.Ledger.Driver {
	case "", "file":
		return mention.NewFileLedger(cfg.Ledger.Path)
	case "mysql":
		return mention.NewMySQLLedger(cfg.Ledger.DSN)
	default:
		return nil, errors.New("未知的台账驱动: " + cfg.Ledger.Driver)
	}
}

// createSocialClient 在调试模式下使用本地样例文件代替真实接口。
func createSocialClient(cfg *config.Config) (social.Client, error) {
	if cfg.Social.DebugFixture {
		if cfg.Social.FixturePath == "" {
			return nil, errors.New("调试模式需要配置 fixture_path")
		}
		return social.NewDebugClient(social.NewFixtureSource(cfg.Social.FixturePath)), nil
	}

	return twitter.NewClient(twitter.Config{
		BearerToken: resolveSecret(cfg.Social.BearerToken, cfg.Social.TokenEnv),
		BaseURL:     cfg.Social.BaseURL,
		AccountID:   cfg.Social.AccountID,
	})
}

// createScorer 构建信誉评分客户端, 按需叠加 Redis 缓存。
func createScorer(cfg *config.Config) (reputation.Scorer, func(), error) {
	client, err := reputation.NewClient(reputation.Config{
		BaseURL: cfg.Reputation.BaseURL,
	})
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Reputation.Cache.Enabled {
		return client, func() {}, nil
	}

	cached, err := reputation.NewCachedScorer(client, reputation.CacheConfig{
		Addr:     cfg.Reputation.Cache.Address,
		Password: cfg.Reputation.Cache.Password,
		DB:       cfg.Reputation.Cache.DB,
		TTL:      time.Duration(cfg.Reputation.Cache.TTLSeconds) * time.Second,
	})
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := cached.Close(); err != nil {
			logger.L().Warn("关闭评分缓存失败", "error", err)
		}
	}
	return cached, closeFn, nil
}

// createAlerts 组装告警渠道, 日志渠道始终开启。
func createAlerts(cfg *config.Config) (*alerting.Dispatcher, error) {
	notifiers := []alerting.Notifier{alerting.LogNotifier{}}
	if cfg.Alerting.RabbitMQ.Enabled {
		mq, err := alerting.NewRabbitMQNotifier(alerting.RabbitMQConfig{
			URL:     cfg.Alerting.RabbitMQ.URL,
			Queue:   cfg.Alerting.RabbitMQ.Queue,
			Durable: cfg.Alerting.RabbitMQ.Durable,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, mq)
	}
	return alerting.NewDispatcher(notifiers...), nil
}

// createComposer 组装回复器, 图片转换与大模型润色都是可选能力。
func createComposer(cfg *config.Config, replier social.Replier) (*reply.Composer, error) {
	var opts []reply.Option

	if cfg.Reply.Converter.Command != "" {
		converter, err := render.NewCommandConverter(cfg.Reply.Converter.Command, cfg.Reply.Converter.Args)
		if err != nil {
			return nil, err
		}
		opts = append(opts, reply.WithConverter(converter))
	}

	phraser, err := createPhraser(cfg)
	if err != nil {
		return nil, err
	}
	if phraser != nil {
		opts = append(opts, reply.WithPhraser(phraser))
	}

	return reply.NewComposer(replier, cfg.Reply.TemplatesPath, opts...)
}

// createPhraser 按配置构建大模型客户端, 未配置时返回 nil 表示只用模板。
func createPhraser(cfg *config.Config) (llm.Phraser, error) {
	switch cfg.Reply.LLM.Provider {
	case "":
		return nil, nil
	case "openai":
		apiKey := resolveSecret(cfg.Reply.LLM.APIKey, cfg.Reply.LLM.APIKeyEnv)
		if apiKey == "" {
			return nil, errors.New("OpenAI provider 需要配置 api_key 或 api_key_env")
		}
		return openai.NewClient(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.Reply.LLM.BaseURL,
			Model:   cfg.Reply.LLM.Model,
			Timeout: cfg.Reply.LLM.Timeout(),
		})
	default:
		return nil, errors.New("未知的大模型 provider: " + cfg.Reply.LLM.Provider)
	}
}

// resolveSecret 优先使用配置中的明文, 其次读取指定的环境变量。
func resolveSecret(value, envName string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	if envName != "" {
		return strings.TrimSpace(os.Getenv(envName))
	}
	return ""
}
