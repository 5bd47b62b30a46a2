package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"monitor-precos/config"
	"monitor-precos/internal/api"
	"monitor-precos/internal/bot"
	"monitor-precos/internal/database"
	"monitor-precos/internal/models"
	"monitor-precos/internal/monitor"
	"monitor-precos/internal/notifier"
	"monitor-precos/internal/scheduler"
	"monitor-precos/internal/scraper"
	"monitor-precos/internal/tracker"
	"monitor-precos/pkg/closer"
	"monitor-precos/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

// store é o que o monitor, o serviço e a API precisam do banco
type store interface {
	monitor.Gateway
	tracker.Store
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func main() {
	log := logger.NewSlogLogger()

	// Carregar variáveis de ambiente
	if err := godotenv.Load(); err != nil {
		log.Infof("Arquivo .env não encontrado, usando variáveis de ambiente do sistema")
	}

	// Carregar configurações
	cfg, err := config.Load()
	if err != nil {
		log.Errorf(err, "Erro ao carregar configurações")
		os.Exit(1)
	}
	log = logger.NewSlogLoggerWithWriter(os.Stdout, cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Errorf(err, "Erro fatal")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cl := closer.New()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := cl.Close(shutdownCtx); err != nil {
			log.Errorf(err, "Erro ao encerrar")
		}
	}()

	// Inicializar banco de dados
	db, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	cl.Add("database", db.Close)

	// Inicializar fetchers
	registry, err := buildFetchers(ctx, cfg, cl, log)
	if err != nil {
		return err
	}

	// Inicializar bot do Telegram (opcional)
	var telegramSender notifier.Sender
	if cfg.TelegramBotToken != "" {
		botAPI, err := bot.Init(cfg.TelegramBotToken, log)
		if err != nil {
			return err
		}
		telegramSender = botAPI
	} else {
		log.Warnf("TELEGRAM_BOT_TOKEN não configurado: bot de comandos desativado")
	}

	notifiers := buildNotifiers(cfg, telegramSender, cl, log)

	maxErrors := cfg.MaxConsecutiveErrors
	if maxErrors == 0 {
		maxErrors = -1
	}
	mon := monitor.New(db, registry, notifiers, monitor.Config{
		MaxConcurrent:        cfg.MaxConcurrentChecks,
		FetchTimeout:         cfg.FetchTimeout,
		MaxConsecutiveErrors: maxErrors,
	}, log)
	service := tracker.New(db, registry, mon, log)

	// Iniciar monitoramento em background
	sched := scheduler.New(mon, cfg.CheckInterval, log)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	cl.Add("scheduler", sched.Stop)

	// API HTTP
	r := chi.NewRouter()
	api.NewRouter(r, log).Init(api.NewProductHandler(service, sched, db, log))
	srv := api.NewServer(r, cfg.HTTPPort)
	cl.Add("http", srv.Stop)

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Servidor HTTP ouvindo na porta %s", cfg.HTTPPort)
		if err := srv.Run(); err != nil {
			errCh <- err
		}
	}()

	// Configurar comandos do bot
	if sender, ok := telegramSender.(bot.API); ok {
		b := bot.New(sender, service, cfg.TelegramChatID, log)
		cl.Add("telegram", b.Stop)
		go b.Run(ctx)
	}

	// Aguardar sinal de interrupção
	select {
	case <-ctx.Done():
		log.Infof("Encerrando...")
		return nil
	case err := <-errCh:
		return err
	}
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (store, error) {
	if cfg.UsePostgres() {
		pg, err := database.NewPostgres(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}

	db, err := database.New(ctx, cfg.DatabasePath, log)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func buildFetchers(ctx context.Context, cfg *config.Config, cl *closer.Closer, log logger.Logger) (*scraper.Registry, error) {
	// Cada loja tem seu próprio limite de requisições
	client := func() *scraper.Client {
		return scraper.NewClient(cfg.FetchTimeout, cfg.RateLimitPerMinute)
	}

	fetchers := []scraper.Fetcher{
		scraper.NewAmazonFetcher(scraper.AmazonConfig{
			AccessKey:  cfg.Amazon.AccessKey,
			SecretKey:  cfg.Amazon.SecretKey,
			PartnerTag: cfg.Amazon.PartnerTag,
		}, client()),
		scraper.NewEbayFetcher(scraper.EbayConfig{AppID: cfg.Ebay.AppID}, client()),
		scraper.NewWalmartFetcher(scraper.WalmartConfig{
			ClientID:     cfg.Walmart.ClientID,
			ClientSecret: cfg.Walmart.ClientSecret,
		}, client()),
		scraper.NewBestBuyFetcher(scraper.BestBuyConfig{APIKey: cfg.BestBuy.APIKey}, client()),
		scraper.NewTargetFetcher(scraper.TargetConfig{
			APIKey:  cfg.Target.APIKey,
			StoreID: cfg.Target.StoreID,
		}, client()),
		scraper.NewMercadoLivreFetcher(client()),
	}

	var cache scraper.PriceCache
	if cfg.Redis.URL != "" {
		redisCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		rc, err := scraper.NewRedisCache(redisCtx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		cl.Add("redis", rc.Close)
		cache = rc
		log.Infof("Cache de preços no Redis ativado (TTL %v)", cfg.Redis.PriceTTL)
	}

	for i, f := range fetchers {
		if !f.IsConfigured() {
			if cfg.AllowPlaceholder {
				log.Warnf("Loja %s sem credenciais: usando preços simulados", f.Platform())
				f = scraper.WithPlaceholderFallback(f)
			} else {
				log.Warnf("Loja %s sem credenciais: produtos dela não serão verificados", f.Platform())
			}
		}
		if cache != nil {
			f = scraper.WithCache(f, cache, cfg.Redis.PriceTTL, log)
		}
		fetchers[i] = f
	}

	return scraper.NewRegistry(fetchers...)
}

func buildNotifiers(cfg *config.Config, telegram notifier.Sender, cl *closer.Closer, log logger.Logger) *notifier.Registry {
	kafkaChannel := notifier.NewKafkaChannel(cfg.Kafka.Brokers)
	if kafkaChannel.IsConfigured() {
		cl.Add("kafka", kafkaChannel.Close)
	}

	registry := notifier.NewRegistry(log,
		notifier.NewEmailChannel(notifier.EmailConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}),
		notifier.NewTelegramChannel(telegram),
		notifier.NewSMSChannel(notifier.SMSConfig{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			FromNumber: cfg.Twilio.FromNumber,
		}),
		notifier.NewWebhookChannel(notifier.WebhookConfig{Secret: cfg.Webhook.Secret}),
		notifier.NewDiscordChannel(0),
		notifier.NewSlackChannel(0),
		notifier.NewPushoverChannel(notifier.PushoverConfig{AppToken: cfg.Pushover.AppToken}),
		kafkaChannel,
	)

	if cfg.TelegramChatID != 0 {
		registry.SetDefault(models.ChannelTelegram, strconv.FormatInt(cfg.TelegramChatID, 10))
	}
	if cfg.Kafka.AlertTopic != "" {
		registry.SetDefault(models.ChannelKafka, cfg.Kafka.AlertTopic)
	}
	registry.SetDefault(models.ChannelDiscord, cfg.Chat.DiscordWebhookURL)
	registry.SetDefault(models.ChannelSlack, cfg.Chat.SlackWebhookURL)
	registry.SetDefault(models.ChannelPushover, cfg.Pushover.UserKey)

	log.Infof("Canais de notificação configurados: %v", registry.Configured())
	return registry
}
