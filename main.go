package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"eino_dealer_bot/internal/config"
	"eino_dealer_bot/internal/followup"
	"eino_dealer_bot/internal/metrics"
	"eino_dealer_bot/internal/nodes"
	"eino_dealer_bot/internal/reasoner"
	"eino_dealer_bot/internal/resilience"
	"eino_dealer_bot/internal/services"
	circuitstore "eino_dealer_bot/internal/storage"
	"eino_dealer_bot/internal/telemetry"
	"eino_dealer_bot/pkg"
	"eino_dealer_bot/src"
	"eino_dealer_bot/src/conversation"
	"eino_dealer_bot/src/logger"
	"eino_dealer_bot/src/storage"
)

// app holds the wired collaborators shared by the commands
type app struct {
	cfg      *src.Config
	bot      *config.BotConfig
	counters *metrics.Counters
	redis    *redis.Client

	store      conversation.ContextStore
	history    conversation.ResponseHistory
	transcript conversation.Repository
	breaker    *resilience.Breaker
	bus        services.MessageBus

	shutdown telemetry.Shutdown
}

var rootCmd = &cobra.Command{
	Use:   "dealer-bot",
	Short: "WhatsApp sales assistant for a used-car dealership",
	Long: `Answers customer messages for a used-car dealership.

Available commands:
  chat  - Talk to the bot from the terminal
  sweep - Send follow-ups to customers whose conversation went quiet`,
	SilenceUsage: true,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the bot from the terminal",
	Long: `Reads one customer message per line from stdin and prints the replies.

Conversation state lives in Redis when REDIS_URL is set, in memory otherwise.`,
	RunE: runChat,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Send follow-ups to idle customers",
	RunE:  runSweep,
}

var (
	chatUserID string
	chatName   string
)

func init() {
	chatCmd.Flags().StringVar(&chatUserID, "user", "console", "customer id used for the conversation")
	chatCmd.Flags().StringVar(&chatName, "name", "", "customer display name")
	rootCmd.AddCommand(chatCmd, sweepCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newApp(ctx context.Context) (*app, error) {
	// .env is optional, the environment wins
	_ = godotenv.Load()

	cfg, err := src.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := logger.InitLogger(cfg.LogConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	bot, err := config.LoadBotConfig(cfg.BotConfig.ConfigPath)
	if err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Init(ctx, cfg.TelemetryConfig)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		bot:      bot,
		counters: metrics.New(),
		shutdown: shutdown,
	}

	conv := cfg.ConversationConfig
	var circuits resilience.Repository
	if conv.RedisURL != "" {
		client, err := storage.NewRedisClient(ctx, conv.RedisURL)
		if err != nil {
			return nil, err
		}
		a.redis = client
		a.store = conversation.NewRedisContextStore(client, conv.SummaryTTL)
		a.history = conversation.NewRedisResponseHistory(client, conv.HistorySize, conv.SummaryTTL)
		a.transcript = conversation.NewRedisRepository(client, conv.SummaryTTL, conv.TranscriptMaxMessages)
		circuits = circuitstore.NewRedisCircuitRepository(client, conv.CircuitTTL)
		logger.Info().Msg("Conversation state stored in Redis")
	} else {
		a.store = conversation.NewMemoryContextStore()
		a.history = conversation.NewMemoryResponseHistory(conv.HistorySize)
		a.transcript = conversation.NewMemoryRepository(conv.TranscriptMaxMessages)
		circuits = resilience.NewMemoryRepository()
		logger.Warn().Msg("REDIS_URL not set, conversation state kept in memory")
	}

	a.breaker = resilience.NewBreaker(circuits)
	a.bus = services.NewBreakerBus(services.NewConsoleBus(os.Stdout), a.breaker)
	return a, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to flush traces")
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
	logger.Info().Object("metrics", a.counters.Snapshot()).Msg("Shutting down")
}

func (a *app) newPipeline(ctx context.Context) (*nodes.Pipeline, error) {
	chatModel, err := reasoner.NewChatModel(ctx, a.cfg.LLMConfig)
	if err != nil {
		return nil, err
	}
	r := reasoner.NewGuardedReasoner(
		reasoner.NewChatModelReasoner(chatModel),
		resilience.NewGuard(a.breaker, resilience.LLM),
	)

	var inventory *services.InventoryService
	if path := a.cfg.BotConfig.InventoryPath; path != "" {
		if inventory, err = services.LoadInventory(path); err != nil {
			return nil, err
		}
	} else {
		inventory = services.NewDemoInventoryService()
	}

	return nodes.NewPipeline(nodes.Dependencies{
		Config:             a.bot,
		Reasoner:           r,
		Inventory:          services.NewGuardedRepository(inventory, resilience.NewGuard(a.breaker, resilience.Inventory)),
		Summaries:          conversation.NewSummaryService(a.store),
		History:            a.history,
		Bus:                a.bus,
		Transcript:         a.transcript,
		Counters:           a.counters,
		RewriteTemperature: a.cfg.LLMConfig.ReformulationTemperature,
	})
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	pipeline, err := a.newPipeline(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%s - type a message, Ctrl+D to quit\n", a.bot.Store.Name)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		out, err := pipeline.HandleMessage(ctx, pkg.InboundMessage{
			UserID:     chatUserID,
			Text:       text,
			SenderName: chatName,
			ReceivedAt: time.Now(),
		})
		if err != nil {
			logger.Error().Err(err).Msg("Turn failed")
			continue
		}
		logger.Debug().
			Str("turn_id", out.TurnID).
			Str("source", string(out.Source)).
			Int64("elapsed_ms", out.ProcessingTime).
			Msg("Turn handled")
	}
	return scanner.Err()
}

func runSweep(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	sweeper := followup.NewSweeper(a.store, a.bus, a.bot, a.counters,
		a.cfg.BotConfig.FollowUpIdleAfter, a.cfg.BotConfig.FollowUpSendDelay)
	report, err := sweeper.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "scanned=%d sent=%d skipped=%d failed=%d\n", report.Scanned, report.Sent, report.Skipped, report.Failed)
	return nil
}
