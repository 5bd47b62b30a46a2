package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"monitor-precos/internal/models"
	"monitor-precos/pkg/e"
)

// FetchError é a falha tipada de uma busca de preço
type FetchError struct {
	Kind models.ErrorKind
	Err  error
}

func (f *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *FetchError) Unwrap() error {
	return f.Err
}

func newFetchError(kind models.ErrorKind, format string, args ...any) *FetchError {
	return &FetchError{
		Kind: kind,
		Err:  fmt.Errorf("%w: %s", sentinelFor(kind), fmt.Sprintf(format, args...)),
	}
}

func sentinelFor(kind models.ErrorKind) error {
	switch kind {
	case models.KindNotConfigured:
		return e.ErrNotConfigured
	case models.KindNotFound:
		return e.ErrNotFound
	case models.KindRateLimited:
		return e.ErrRateLimited
	case models.KindTimeout:
		return e.ErrTimeout
	case models.KindUnknownPlatform:
		return e.ErrUnknownPlatform
	default:
		return e.ErrUpstream
	}
}

// KindOf classifica qualquer erro devolvido por um fetcher
func KindOf(ctx context.Context, err error) models.ErrorKind {
	var fe *FetchError
	switch {
	case errors.As(err, &fe):
		return fe.Kind
	case errors.Is(err, context.DeadlineExceeded), ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		return models.KindTimeout
	case errors.Is(err, e.ErrNotFound):
		return models.KindNotFound
	case errors.Is(err, e.ErrRateLimited):
		return models.KindRateLimited
	case errors.Is(err, e.ErrNotConfigured):
		return models.KindNotConfigured
	case errors.Is(err, e.ErrTimeout):
		return models.KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.KindTimeout
	}
	return models.KindUpstreamError
}

// classifyStatus converte um status HTTP não-2xx em FetchError
func classifyStatus(code int) *FetchError {
	switch {
	case code == http.StatusNotFound || code == http.StatusGone:
		return newFetchError(models.KindNotFound, "status code: %d", code)
	case code == http.StatusTooManyRequests:
		return newFetchError(models.KindRateLimited, "status code: %d", code)
	case code == http.StatusGatewayTimeout || code == http.StatusRequestTimeout:
		return newFetchError(models.KindTimeout, "status code: %d", code)
	default:
		return newFetchError(models.KindUpstreamError, "status code: %d", code)
	}
}

// classifyTransport converte um erro de rede ou de contexto em FetchError
func classifyTransport(ctx context.Context, err error) *FetchError {
	if KindOf(ctx, err) == models.KindTimeout {
		return &FetchError{Kind: models.KindTimeout, Err: fmt.Errorf("%w: %v", e.ErrTimeout, err)}
	}
	return &FetchError{Kind: models.KindUpstreamError, Err: fmt.Errorf("%w: %v", e.ErrUpstream, err)}
}
