package scraper

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"monitor-precos/internal/models"
)

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	maxBodySize      = 4 << 20
)

// Client é o cliente HTTP compartilhado pelos fetchers de uma plataforma.
// Cada plataforma tem o seu próprio limitador de requisições.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient cria um cliente que faz no máximo perMinute requisições por minuto
func NewClient(timeout time.Duration, perMinute int) *Client {
	limit := rate.Inf
	burst := 1
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
		burst = max(1, perMinute/10)
	}

	return &Client{
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Do aguarda o limitador e executa a requisição. Erros já saem classificados.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, classifyTransport(ctx, ctx.Err())
		}
		return nil, newFetchError(models.KindRateLimited, "limite local de requisições: %v", err)
	}

	resp, err := c.http.Do(req.WithContext(ctx))
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		resp.Body.Close()
		return nil, classifyStatus(resp.StatusCode)
	}
	return resp, nil
}

// getJSON executa a requisição e decodifica o corpo JSON em out
func (c *Client) getJSON(ctx context.Context, req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil {
		if ctx.Err() != nil {
			return classifyTransport(ctx, ctx.Err())
		}
		return newFetchError(models.KindUpstreamError, "resposta inválida: %v", err)
	}
	return nil
}

func newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, newFetchError(models.KindUpstreamError, "erro ao montar requisição: %v", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	return req, nil
}

func okResult(price decimal.Decimal, currency, title string) *models.PriceResult {
	return &models.PriceResult{
		Price:     decimal.NewNullDecimal(price),
		Currency:  currency,
		Title:     title,
		FetchedAt: time.Now(),
		Outcome:   models.OutcomeOK,
	}
}
