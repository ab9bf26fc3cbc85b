package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rportela/live-bet-bot/internal/engine"
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
	"github.com/rportela/live-bet-bot/internal/shared/metrics"
	"github.com/rportela/live-bet-bot/internal/strategy"
	"github.com/rportela/live-bet-bot/internal/tracker"
)

func main() {
	// .env é opcional; em produção tudo vem do ambiente
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.FootballAPIKey == "" {
		log.Fatal("API_FOOTBALL_KEY not set")
	}
	if cfg.TelegramToken == "" || cfg.TelegramChatID == 0 {
		// Sem canal de notificação as resoluções ficariam retidas pra sempre
		log.Fatal("TELEGRAM_TOKEN/TELEGRAM_CHAT_ID not set")
	}

	// Postgres: ledger de apostas
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	betLedger := ledger.NewPostgres(pg)
	if err := betLedger.EnsureSchema(ctx); err != nil {
		log.Fatal("ledger schema", zap.Error(err))
	}

	// Redis: estado rastreado por partida
	rdb, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()
	states := tracker.NewRedisStore(rdb)

	// Kafka: stream de eventos de aposta
	placedWriter := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
	defer placedWriter.Close()
	settledWriter := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled)
	defer settledWriter.Close()
	publisher := producer.NewKafkaPublisher(placedWriter, settledWriter)

	// Telegram: canal de notificação
	telegram, err := notify.NewTelegram(log, cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		log.Fatal("telegram", zap.Error(err))
	}

	// Estratégia declarativa
	strat, err := strategy.Load(cfg.StrategyFile)
	if err != nil {
		log.Fatal("strategy", zap.Error(err))
	}

	apiClient := fixtures.NewClient(log, cfg.FootballAPIURL, cfg.FootballAPIKey)

	// Métricas Prometheus do ciclo e das apostas
	cycles := prometheus.NewCounter(prometheus.CounterOpts{Name: "bet_tracker_cycles_total", Help: "ciclos de polling executados"})
	cycleErrors := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_tracker_cycle_errors_total", Help: "erros por estágio do ciclo"}, []string{"stage"})
	liveGauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "bet_tracker_live_fixtures", Help: "partidas ao vivo no último ciclo"})
	placed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_tracker_bets_placed_total", Help: "apostas colocadas"}, []string{"bet_type"})
	settled := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bet_tracker_bets_settled_total", Help: "apostas liquidadas"}, []string{"bet_type", "outcome"})
	prometheus.MustRegister(cycles, cycleErrors, liveGauge, placed, settled)

	machine := &tracker.Machine{
		Log:      log,
		Strategy: strat,
		States:   states,
		Bets:     betLedger,
		Notifier: telegram,
		Events:   publisher,

		OnPlaced:  func(betType string) { placed.WithLabelValues(betType).Inc() },
		OnSettled: func(betType, outcome string) { settled.WithLabelValues(betType, outcome).Inc() },
	}

	sweeper := &reconciler.Reconciler{
		Log:      log,
		Strategy: strat,
		Source:   apiClient,
		Bets:     betLedger,
		States:   states,
		Notifier: telegram,
		Events:   publisher,
		Wait:     cfg.StaleAfter,

		OnResolved: func(betType, outcome string) { settled.WithLabelValues(betType, outcome).Inc() },
	}

	eng := &engine.Engine{
		Log:      log,
		Source:   apiClient,
		Machine:  machine,
		Sweeper:  sweeper,
		Interval: cfg.PollInterval,

		OnCycle:     func() { cycles.Inc() },
		OnError:     func(stage string) { cycleErrors.WithLabelValues(stage).Inc() },
		OnLiveCount: func(n int) { liveGauge.Set(float64(n)) },
	}

	// Servidor de métricas e health check
	metrics.StartMetricsServer(cfg.MetricsPort, func(hctx context.Context) error {
		if err := pg.PingContext(hctx); err != nil {
			return err
		}
		return rdb.Ping(hctx).Err()
	})
	log.Info("metrics/health", zap.String("port", cfg.MetricsPort))

	if err := telegram.Send(ctx, "🚀 Live Bet Tracker started! Monitoring live games."); err != nil {
		log.Warn("startup notify failed", zap.Error(err))
	}

	eng.Run(ctx)
}
