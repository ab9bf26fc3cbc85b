package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/rportela/live-bet-bot/internal/fixtures"
	"github.com/rportela/live-bet-bot/internal/ledger"
	"github.com/rportela/live-bet-bot/internal/notify"
	"github.com/rportela/live-bet-bot/internal/producer"
	"github.com/rportela/live-bet-bot/internal/reconciler"
	sharedcache "github.com/rportela/live-bet-bot/internal/shared/cache"
	"github.com/rportela/live-bet-bot/internal/shared/config"
	"github.com/rportela/live-bet-bot/internal/shared/db"
	skafka "github.com/rportela/live-bet-bot/internal/shared/kafka"
	"github.com/rportela/live-bet-bot/internal/shared/logger"
	"github.com/rportela/live-bet-bot/internal/strategy"
	"github.com/rportela/live-bet-bot/internal/tracker"
)

// Execução única da varredura de apostas antigas, pensada pra rodar via cron
// em deploys sem o worker contínuo de pé
func main() {
	_ = godotenv.Load()

	_ = os.Setenv("SERVICE_NAME", "stale-sweeper")
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	if cfg.FootballAPIKey == "" {
		log.Fatal("API_FOOTBALL_KEY not set")
	}
	if cfg.TelegramToken == "" || cfg.TelegramChatID == 0 {
		log.Fatal("TELEGRAM_TOKEN/TELEGRAM_CHAT_ID not set")
	}

	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	betLedger := ledger.NewPostgres(pg)
	if err := betLedger.EnsureSchema(ctx); err != nil {
		log.Fatal("ledger schema", zap.Error(err))
	}

	rdb, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	telegram, err := notify.NewTelegram(log, cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		log.Fatal("telegram", zap.Error(err))
	}

	strat, err := strategy.Load(cfg.StrategyFile)
	if err != nil {
		log.Fatal("strategy", zap.Error(err))
	}

	settledWriter := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled)
	defer settledWriter.Close()
	placedWriter := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
	defer placedWriter.Close()

	sweeper := &reconciler.Reconciler{
		Log:      log,
		Strategy: strat,
		Source:   fixtures.NewClient(log, cfg.FootballAPIURL, cfg.FootballAPIKey),
		Bets:     betLedger,
		States:   tracker.NewRedisStore(rdb),
		Notifier: telegram,
		Events:   producer.NewKafkaPublisher(placedWriter, settledWriter),
		Wait:     cfg.StaleAfter,
	}

	log.Info("one-shot sweep starting", zap.Duration("stale_after", cfg.StaleAfter))
	sweeper.Sweep(ctx)
	log.Info("one-shot sweep done")
}
