package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"monitor-precos/internal/models"
	"monitor-precos/internal/tracker"
	"monitor-precos/pkg/logger"
)

// Service são as operações de cadastro usadas pelos comandos
type Service interface {
	Create(ctx context.Context, req tracker.CreateRequest) (*models.TrackedProduct, error)
	Get(ctx context.Context, id int64) (*models.TrackedProduct, error)
	List(ctx context.Context) ([]models.TrackedProduct, error)
	Delete(ctx context.Context, id int64) error
	CheckNow(ctx context.Context, id int64) (models.CheckOutcome, error)
	UpdateTarget(ctx context.Context, id int64, target decimal.Decimal, rearm bool) (*models.TrackedProduct, error)
	Rearm(ctx context.Context, id int64) (*models.TrackedProduct, error)
}

// API é a parte do cliente do Telegram usada pelo bot
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Init inicializa o bot do Telegram
func Init(token string, log logger.Logger) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN não configurado. Verifique o arquivo .env")
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		if strings.Contains(err.Error(), "Unauthorized") {
			return nil, fmt.Errorf("token do Telegram inválido ou expirado. Verifique o TELEGRAM_BOT_TOKEN no arquivo .env. Para obter um token, fale com @BotFather no Telegram")
		}
		return nil, fmt.Errorf("erro ao conectar com Telegram: %w", err)
	}

	bot.Debug = false
	log.Infof("Bot autorizado como: %s", bot.Self.UserName)
	return bot, nil
}

// Bot atende os comandos recebidos pelo Telegram
type Bot struct {
	api              API
	service          Service
	authorizedChatID int64 // 0 aceita qualquer chat
	log              logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New cria o bot. authorizedChatID restringe os comandos a um único chat.
func New(api API, service Service, authorizedChatID int64, log logger.Logger) *Bot {
	return &Bot{
		api:              api,
		service:          service,
		authorizedChatID: authorizedChatID,
		log:              log,
	}
}

// Run recebe atualizações até o contexto ser cancelado ou Stop ser chamado
func (b *Bot) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	b.mu.Lock()
	b.cancel = cancel
	b.done = done
	b.mu.Unlock()

	defer close(done)
	defer cancel()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	b.log.Infof("Bot do Telegram aguardando comandos")
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			b.handle(ctx, update.Message)
		}
	}
}

// Stop interrompe o Run e espera ele terminar
func (b *Bot) Stop(ctx context.Context) error {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
