package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/shopspring/decimal"

	"monitor-precos/internal/models"
)

var bestBuySkuPattern = regexp.MustCompile(`(?:/site/(?:[^/?]+/)*?|[?&]skuId=)(\d+)`)

// BestBuyConfig contém a chave da API de produtos
type BestBuyConfig struct {
	APIKey   string
	Endpoint string
}

// BestBuyFetcher consulta preços pela API de produtos da Best Buy
type BestBuyFetcher struct {
	cfg    BestBuyConfig
	client *Client
}

// NewBestBuyFetcher cria o fetcher da Best Buy
func NewBestBuyFetcher(cfg BestBuyConfig, client *Client) *BestBuyFetcher {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.bestbuy.com/v1/products"
	}
	return &BestBuyFetcher{cfg: cfg, client: client}
}

func (f *BestBuyFetcher) Platform() models.Platform { return models.PlatformBestBuy }

func (f *BestBuyFetcher) IsConfigured() bool { return f.cfg.APIKey != "" }

func (f *BestBuyFetcher) CanHandle(rawURL string) bool {
	return hostHas(rawURL, "bestbuy.com")
}

func (f *BestBuyFetcher) ExtractProductID(raw string) (string, error) {
	s, u, err := parseRaw(raw)
	if err != nil {
		return "", err
	}
	if u == nil {
		return s, nil
	}
	return extractWith(u, bestBuySkuPattern)
}

func (f *BestBuyFetcher) CanonicalURL(productID string) string {
	return fmt.Sprintf("https://www.bestbuy.com/site/%s.p?skuId=%s", productID, productID)
}

type bestBuyProduct struct {
	SKU          int64               `json:"sku"`
	Name         string              `json:"name"`
	SalePrice    decimal.NullDecimal `json:"salePrice"`
	RegularPrice decimal.NullDecimal `json:"regularPrice"`
}

func (f *BestBuyFetcher) FetchPrice(ctx context.Context, productID string) (*models.PriceResult, error) {
	q := url.Values{}
	q.Set("apiKey", f.cfg.APIKey)
	q.Set("format", "json")
	q.Set("show", "sku,name,salePrice,regularPrice")

	endpoint := fmt.Sprintf("%s/%s.json?%s", f.cfg.Endpoint, url.PathEscape(productID), q.Encode())
	req, err := newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var product bestBuyProduct
	if err := f.client.getJSON(ctx, req, &product); err != nil {
		return nil, err
	}

	price := product.SalePrice
	if !price.Valid {
		price = product.RegularPrice
	}
	if !price.Valid {
		return nil, newFetchError(models.KindNotFound, "sku %s sem preço", productID)
	}
	return okResult(price.Decimal, "USD", product.Name), nil
}
