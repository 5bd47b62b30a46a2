package scraper

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"monitor-precos/internal/models"
	"monitor-precos/pkg/e"
)

// Fetcher define a interface para buscadores de preço de diferentes lojas
type Fetcher interface {
	Platform() models.Platform
	// IsConfigured informa se as credenciais necessárias estão presentes
	IsConfigured() bool
	// CanHandle verifica se a URL pertence a esta loja
	CanHandle(rawURL string) bool
	// ExtractProductID converte a URL ou ID do usuário no ID canônico.
	// Retorna e.ErrValidation para entrada malformada.
	ExtractProductID(raw string) (string, error)
	// CanonicalURL monta a URL do produto a partir do ID canônico
	CanonicalURL(productID string) string
	// FetchPrice consulta o preço atual. Falhas retornam *FetchError.
	FetchPrice(ctx context.Context, productID string) (*models.PriceResult, error)
}

// Registry mantém um registro de todos os fetchers disponíveis, um por plataforma
type Registry struct {
	mu       sync.RWMutex
	fetchers map[models.Platform]Fetcher
	now      func() time.Time
}

// NewRegistry cria um novo registro com os fetchers informados
func NewRegistry(fetchers ...Fetcher) (*Registry, error) {
	r := &Registry{
		fetchers: make(map[models.Platform]Fetcher, len(fetchers)),
		now:      time.Now,
	}
	for _, f := range fetchers {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adiciona um fetcher. Cada plataforma aceita apenas um.
func (r *Registry) Register(f Fetcher) error {
	if f == nil {
		return fmt.Errorf("fetcher nulo")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p := f.Platform()
	if _, exists := r.fetchers[p]; exists {
		return fmt.Errorf("plataforma %q já registrada", p)
	}
	r.fetchers[p] = f
	return nil
}

// Get retorna o fetcher da plataforma
func (r *Registry) Get(p models.Platform) (Fetcher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fetchers[p]
	return f, ok
}

// Platforms lista as plataformas registradas em ordem alfabética
func (r *Registry) Platforms() []models.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Platform, 0, len(r.fetchers))
	for p := range r.fetchers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsConfigured informa se a plataforma existe e pode ser consultada
func (r *Registry) IsConfigured(p models.Platform) bool {
	f, ok := r.Get(p)
	return ok && f.IsConfigured()
}

// ExtractProductID resolve o ID canônico para a plataforma
func (r *Registry) ExtractProductID(p models.Platform, raw string) (string, error) {
	f, ok := r.Get(p)
	if !ok {
		return "", fmt.Errorf("%w: %w %q", e.ErrValidation, e.ErrUnknownPlatform, p)
	}
	return f.ExtractProductID(raw)
}

// DetectPlatform encontra a plataforma apropriada para uma URL
func (r *Registry) DetectPlatform(rawURL string) (models.Platform, bool) {
	for _, p := range r.Platforms() {
		f, _ := r.Get(p)
		if f.CanHandle(rawURL) {
			return p, true
		}
	}
	return "", false
}

// Fetch busca o preço e sempre devolve um valor: falhas viram PriceResult
// com Outcome fetch_error e o tipo correspondente.
func (r *Registry) Fetch(ctx context.Context, p models.Platform, productID string) models.PriceResult {
	f, ok := r.Get(p)
	if !ok {
		return models.FailedResult(p, productID, models.KindUnknownPlatform, e.ErrUnknownPlatform, r.now())
	}
	if !f.IsConfigured() {
		return models.FailedResult(p, productID, models.KindNotConfigured, e.ErrNotConfigured, r.now())
	}

	res, err := f.FetchPrice(ctx, productID)
	if err != nil {
		return models.FailedResult(p, productID, KindOf(ctx, err), err, r.now())
	}
	if res == nil || !res.Price.Valid {
		return models.FailedResult(p, productID, models.KindUpstreamError, fmt.Errorf("%w: resposta sem preço", e.ErrUpstream), r.now())
	}

	out := *res
	out.Platform = p
	out.ProductID = productID
	out.Outcome = models.OutcomeOK
	out.ErrorKind = models.KindNone
	if out.FetchedAt.IsZero() {
		out.FetchedAt = r.now()
	}
	return out
}
