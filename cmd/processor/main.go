package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gikundiro/momo-gateway/internal/config"
	"github.com/gikundiro/momo-gateway/internal/notifier"
	"github.com/gikundiro/momo-gateway/internal/parser"
	"github.com/gikundiro/momo-gateway/internal/processor"
	"github.com/gikundiro/momo-gateway/internal/reconcile"
	"github.com/gikundiro/momo-gateway/internal/repository"
	"github.com/gikundiro/momo-gateway/pkg/logger"
	"github.com/gikundiro/momo-gateway/pkg/pg"
	"github.com/gikundiro/momo-gateway/pkg/prom"
	"github.com/gikundiro/momo-gateway/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	smsRepo := repository.NewSmsRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)
	ticketRepo := repository.NewTicketOrderRepository(db)
	shopRepo := repository.NewShopOrderRepository(db)
	insuranceRepo := repository.NewInsuranceQuoteRepository(db)
	saccoRepo := repository.NewSaccoDepositRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	memberRepo := repository.NewMemberRepository(db)

	var extractor parser.Extractor
	if config.Get().OpenAIAPIKey != "" {
		extractor = parser.NewOpenAIClient(parser.OpenAIConfig{
			BaseURL: config.Get().OpenAIBaseURL,
			APIKey:  config.Get().OpenAIAPIKey,
			Model:   config.Get().OpenAIModel,
			Timeout: config.Get().OpenAITimeout,
		})
	} else {
		logger.Warn("no model api key configured, using heuristic parser only")
	}
	smsParser := parser.New(extractor)

	engine := reconcile.NewEngine(
		db,
		reconcile.Domains(ticketRepo, shopRepo, insuranceRepo, saccoRepo),
		receiptRepo,
		transactionRepo,
		memberRepo,
		config.Get().ReconcileCandidateLimit,
		time.Duration(config.Get().ReconcileWindowDays)*24*time.Hour,
	)

	events := notifier.New(redisAdap, config.Get().NotifyChannel)

	service, err := processor.NewProcessorService(redisAdap)
	if err != nil {
		logger.Error("failed to create the processor", "error", err)
		return
	}
	service.RegisterProcessor(processor.NewSmsParseProcessor(smsRepo, receiptRepo, smsParser, engine, events))

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	go func() {
		err := service.Start()
		if err != nil {
			logger.Error("failed to start processor", "error", err)
		}
	}()

	select {
	case <-c:
		service.Stop()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
