package scraper

import (
	"context"
	"net/http"
	"net/url"
	"regexp"

	"github.com/shopspring/decimal"

	"monitor-precos/internal/models"
)

var walmartItemPattern = regexp.MustCompile(`(?:/ip/(?:[^/?]+/)?|[?&]item_id=)(\d+)`)

// WalmartConfig contém as credenciais da API de afiliados
type WalmartConfig struct {
	ClientID     string
	ClientSecret string
	Endpoint     string
}

// WalmartFetcher consulta preços pela API de itens do Walmart
type WalmartFetcher struct {
	cfg    WalmartConfig
	client *Client
}

// NewWalmartFetcher cria o fetcher do Walmart
func NewWalmartFetcher(cfg WalmartConfig, client *Client) *WalmartFetcher {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://developer.api.walmart.com/api-proxy/service/affil/product/v2/items"
	}
	return &WalmartFetcher{cfg: cfg, client: client}
}

func (f *WalmartFetcher) Platform() models.Platform { return models.PlatformWalmart }

func (f *WalmartFetcher) IsConfigured() bool {
	return f.cfg.ClientID != "" && f.cfg.ClientSecret != ""
}

func (f *WalmartFetcher) CanHandle(rawURL string) bool {
	return hostHas(rawURL, "walmart.com")
}

func (f *WalmartFetcher) ExtractProductID(raw string) (string, error) {
	s, u, err := parseRaw(raw)
	if err != nil {
		return "", err
	}
	if u == nil {
		return s, nil
	}
	return extractWith(u, walmartItemPattern)
}

func (f *WalmartFetcher) CanonicalURL(productID string) string {
	return "https://www.walmart.com/ip/item/" + productID
}

type walmartItem struct {
	ItemID    int64               `json:"itemId"`
	Name      string              `json:"name"`
	SalePrice decimal.NullDecimal `json:"salePrice"`
	MSRP      decimal.NullDecimal `json:"msrp"`
}

func (f *WalmartFetcher) FetchPrice(ctx context.Context, productID string) (*models.PriceResult, error) {
	req, err := newRequest(ctx, http.MethodGet, f.cfg.Endpoint+"/"+url.PathEscape(productID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("WM_CONSUMER.ID", f.cfg.ClientID)
	req.Header.Set("WM_SEC.ACCESS_TOKEN", f.cfg.ClientSecret)

	var item walmartItem
	if err := f.client.getJSON(ctx, req, &item); err != nil {
		return nil, err
	}

	price := item.SalePrice
	if !price.Valid {
		price = item.MSRP
	}
	if !price.Valid {
		return nil, newFetchError(models.KindNotFound, "item %s sem preço", productID)
	}
	return okResult(price.Decimal, "USD", item.Name), nil
}
