// Package tracker concentra as operações de cadastro usadas pelo bot e pela API.
package tracker

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"monitor-precos/internal/models"
	"monitor-precos/internal/scraper"
	"monitor-precos/pkg/e"
	"monitor-precos/pkg/logger"
)

// Store é a parte do banco usada pelo serviço
type Store interface {
	ListProducts(ctx context.Context) ([]models.TrackedProduct, error)
	GetProduct(ctx context.Context, id int64) (*models.TrackedProduct, error)
	CreateProduct(ctx context.Context, p *models.TrackedProduct) (*models.TrackedProduct, error)
	DeleteProduct(ctx context.Context, id int64) error
	UpdateTargetPrice(ctx context.Context, id int64, target decimal.Decimal, rearm bool) (*models.TrackedProduct, error)
	Rearm(ctx context.Context, id int64) (*models.TrackedProduct, error)
}

// Platforms resolve plataformas e IDs de produto
type Platforms interface {
	Get(p models.Platform) (scraper.Fetcher, bool)
	DetectPlatform(rawURL string) (models.Platform, bool)
}

// Checker verifica um produto fora do ciclo
type Checker interface {
	CheckNow(ctx context.Context, id int64) (models.CheckOutcome, error)
}

// CreateRequest são os dados para cadastrar um produto.
// Platform vazio tenta detectar a loja pela URL.
type CreateRequest struct {
	Platform    models.Platform             `json:"platform"`
	RawURLOrID  string                      `json:"url"`
	TargetPrice decimal.Decimal             `json:"target_price"`
	Currency    string                      `json:"currency"`
	NotifyEmail string                      `json:"notify_email"`
	Targets     []models.NotificationTarget `json:"targets"`
}

// Service implementa o cadastro de produtos monitorados
type Service struct {
	store     Store
	platforms Platforms
	checker   Checker
	log       logger.Logger
}

// New cria o serviço
func New(store Store, platforms Platforms, checker Checker, log logger.Logger) *Service {
	return &Service{store: store, platforms: platforms, checker: checker, log: log}
}

// Create valida a entrada, resolve o ID canônico e grava o produto
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.TrackedProduct, error) {
	raw := strings.TrimSpace(req.RawURLOrID)
	if raw == "" {
		return nil, e.Validation("URL ou ID do produto é obrigatório")
	}

	platform := models.Platform(strings.ToLower(strings.TrimSpace(string(req.Platform))))
	if platform == "" {
		detected, ok := s.platforms.DetectPlatform(raw)
		if !ok {
			return nil, e.Validation("não foi possível identificar a loja de %q", raw)
		}
		platform = detected
	}

	fetcher, ok := s.platforms.Get(platform)
	if !ok {
		return nil, fmt.Errorf("%w: %w %q", e.ErrValidation, e.ErrUnknownPlatform, platform)
	}

	productID, err := fetcher.ExtractProductID(raw)
	if err != nil {
		return nil, err
	}

	if !req.TargetPrice.IsPositive() {
		return nil, e.Validation("preço alvo deve ser positivo")
	}

	cur, err := normalizeCurrency(req.Currency, platform)
	if err != nil {
		return nil, err
	}

	email := strings.TrimSpace(req.NotifyEmail)
	if email != "" {
		if email, err = parseEmail(email); err != nil {
			return nil, err
		}
	}

	targets, err := validateTargets(req.Targets)
	if err != nil {
		return nil, err
	}

	productURL := raw
	if !strings.Contains(raw, "://") {
		productURL = fetcher.CanonicalURL(productID)
	}

	p, err := s.store.CreateProduct(ctx, &models.TrackedProduct{
		Platform:    platform,
		ProductID:   productID,
		ProductURL:  productURL,
		TargetPrice: req.TargetPrice,
		Currency:    cur,
		NotifyEmail: email,
		Targets:     targets,
	})
	if err != nil {
		return nil, e.Wrap("erro ao adicionar produto", err)
	}

	s.log.Infof("Produto %d adicionado: %s/%s, alvo %s %s", p.ID, p.Platform, p.ProductID, p.TargetPrice, p.Currency)
	return p, nil
}

// Get retorna um produto pelo ID
func (s *Service) Get(ctx context.Context, id int64) (*models.TrackedProduct, error) {
	return s.store.GetProduct(ctx, id)
}

// List retorna todos os produtos monitorados
func (s *Service) List(ctx context.Context) ([]models.TrackedProduct, error) {
	return s.store.ListProducts(ctx)
}

// Delete remove um produto. Um ciclo em andamento ignora o produto removido.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.log.Infof("Produto %d removido", id)
	return nil
}

// CheckNow verifica o produto imediatamente
func (s *Service) CheckNow(ctx context.Context, id int64) (models.CheckOutcome, error) {
	return s.checker.CheckNow(ctx, id)
}

// UpdateTarget altera o preço alvo. O alerta só volta a ser armado com rearm.
func (s *Service) UpdateTarget(ctx context.Context, id int64, target decimal.Decimal, rearm bool) (*models.TrackedProduct, error) {
	if !target.IsPositive() {
		return nil, e.Validation("preço alvo deve ser positivo")
	}
	p, err := s.store.UpdateTargetPrice(ctx, id, target, rearm)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Preço alvo do produto %d alterado para %s (rearmado: %t)", id, target, rearm)
	return p, nil
}

// Rearm permite que o produto dispare um novo alerta
func (s *Service) Rearm(ctx context.Context, id int64) (*models.TrackedProduct, error) {
	p, err := s.store.Rearm(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Alerta do produto %d rearmado", id)
	return p, nil
}

// normalizeCurrency valida o código ISO 4217. Vazio usa a moeda da loja.
func normalizeCurrency(raw string, platform models.Platform) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if platform == models.PlatformMercadoLivre {
			return "BRL", nil
		}
		return "USD", nil
	}
	unit, err := currency.ParseISO(strings.ToUpper(raw))
	if err != nil {
		return "", e.Validation("moeda inválida: %q", raw)
	}
	return unit.String(), nil
}

func parseEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", e.Validation("e-mail inválido: %q", raw)
	}
	return addr.Address, nil
}

func validateTargets(targets []models.NotificationTarget) ([]models.NotificationTarget, error) {
	out := make([]models.NotificationTarget, 0, len(targets))
	for _, t := range targets {
		t.Recipient = strings.TrimSpace(t.Recipient)
		if t.Recipient == "" {
			return nil, e.Validation("destinatário vazio para o canal %q", t.Channel)
		}
		switch t.Channel {
		case models.ChannelEmail:
			addr, err := parseEmail(t.Recipient)
			if err != nil {
				return nil, err
			}
			t.Recipient = addr
		case models.ChannelWebhook, models.ChannelDiscord, models.ChannelSlack:
			if !strings.HasPrefix(t.Recipient, "http://") && !strings.HasPrefix(t.Recipient, "https://") {
				return nil, e.Validation("%s deve ser uma URL http(s): %q", t.Channel, t.Recipient)
			}
		case models.ChannelTelegram, models.ChannelSMS, models.ChannelKafka, models.ChannelPushover:
		default:
			return nil, e.Validation("canal desconhecido: %q", t.Channel)
		}
		out = append(out, t)
	}
	return out, nil
}
