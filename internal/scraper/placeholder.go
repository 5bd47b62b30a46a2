package scraper

import (
	"context"
	"crypto/md5"
	"encoding/binary"

	"github.com/shopspring/decimal"

	"monitor-precos/internal/models"
)

type priceRange struct {
	base   int64
	spread int64
}

var placeholderRanges = map[models.Platform]priceRange{
	models.PlatformAmazon:       {base: 20, spread: 180},
	models.PlatformEbay:         {base: 15, spread: 135},
	models.PlatformWalmart:      {base: 10, spread: 90},
	models.PlatformBestBuy:      {base: 50, spread: 450},
	models.PlatformTarget:       {base: 10, spread: 70},
	models.PlatformMercadoLivre: {base: 30, spread: 270},
}

// PlaceholderFetcher envolve um fetcher sem credenciais e devolve um preço
// determinístico derivado do ID. Usado apenas em desenvolvimento.
type PlaceholderFetcher struct {
	Fetcher
}

// WithPlaceholderFallback devolve f quando configurado, ou o placeholder em volta dele
func WithPlaceholderFallback(f Fetcher) Fetcher {
	if f.IsConfigured() {
		return f
	}
	return &PlaceholderFetcher{Fetcher: f}
}

func (p *PlaceholderFetcher) IsConfigured() bool { return true }

func (p *PlaceholderFetcher) FetchPrice(ctx context.Context, productID string) (*models.PriceResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyTransport(ctx, err)
	}

	res := okResult(PlaceholderPrice(p.Platform(), productID), "USD", "")
	if p.Platform() == models.PlatformMercadoLivre {
		res.Currency = "BRL"
	}
	res.Placeholder = true
	return res, nil
}

// PlaceholderPrice calcula o preço fictício de um produto
func PlaceholderPrice(platform models.Platform, productID string) decimal.Decimal {
	r, ok := placeholderRanges[platform]
	if !ok {
		r = priceRange{base: 10, spread: 90}
	}

	sum := md5.Sum([]byte(productID))
	h := binary.BigEndian.Uint64(sum[:8])

	whole := r.base + int64(h%uint64(r.spread))
	cents := int64((h >> 32) % 100)
	return decimal.New(whole*100+cents, -2)
}
