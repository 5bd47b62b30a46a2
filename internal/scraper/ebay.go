package scraper

import (
	"context"
	"net/http"
	"net/url"
	"regexp"

	"github.com/shopspring/decimal"

	"monitor-precos/internal/models"
)

var ebayItemPattern = regexp.MustCompile(`(?:/itm/(?:[^/?]+/)?|[?&]item=)(\d+)`)

// EbayConfig contém as credenciais da Shopping API
type EbayConfig struct {
	AppID    string
	Endpoint string
}

// EbayFetcher consulta preços pela chamada GetSingleItem
type EbayFetcher struct {
	cfg    EbayConfig
	client *Client
}

// NewEbayFetcher cria o fetcher do eBay
func NewEbayFetcher(cfg EbayConfig, client *Client) *EbayFetcher {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://open.api.ebay.com/shopping"
	}
	return &EbayFetcher{cfg: cfg, client: client}
}

func (f *EbayFetcher) Platform() models.Platform { return models.PlatformEbay }

func (f *EbayFetcher) IsConfigured() bool { return f.cfg.AppID != "" }

func (f *EbayFetcher) CanHandle(rawURL string) bool {
	return hostHas(rawURL, "ebay.com")
}

func (f *EbayFetcher) ExtractProductID(raw string) (string, error) {
	s, u, err := parseRaw(raw)
	if err != nil {
		return "", err
	}
	if u == nil {
		return s, nil
	}
	return extractWith(u, ebayItemPattern)
}

func (f *EbayFetcher) CanonicalURL(productID string) string {
	return "https://www.ebay.com/itm/" + productID
}

type ebayResponse struct {
	Ack    string `json:"Ack"`
	Errors []struct {
		ErrorCode    string `json:"ErrorCode"`
		ShortMessage string `json:"ShortMessage"`
	} `json:"Errors"`
	Item struct {
		Title                 string `json:"Title"`
		ConvertedCurrentPrice struct {
			Value      decimal.NullDecimal `json:"Value"`
			CurrencyID string              `json:"CurrencyID"`
		} `json:"ConvertedCurrentPrice"`
	} `json:"Item"`
}

func (f *EbayFetcher) FetchPrice(ctx context.Context, productID string) (*models.PriceResult, error) {
	q := url.Values{}
	q.Set("callname", "GetSingleItem")
	q.Set("responseencoding", "JSON")
	q.Set("appid", f.cfg.AppID)
	q.Set("siteid", "0")
	q.Set("version", "967")
	q.Set("ItemID", productID)

	req, err := newRequest(ctx, http.MethodGet, f.cfg.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var body ebayResponse
	if err := f.client.getJSON(ctx, req, &body); err != nil {
		return nil, err
	}

	if body.Ack != "Success" && body.Ack != "Warning" {
		if len(body.Errors) > 0 {
			// 10.12: item inexistente ou inválido
			if body.Errors[0].ErrorCode == "10.12" {
				return nil, newFetchError(models.KindNotFound, "%s", body.Errors[0].ShortMessage)
			}
			return nil, newFetchError(models.KindUpstreamError, "%s: %s", body.Errors[0].ErrorCode, body.Errors[0].ShortMessage)
		}
		return nil, newFetchError(models.KindUpstreamError, "ack inesperado: %q", body.Ack)
	}

	price := body.Item.ConvertedCurrentPrice
	if !price.Value.Valid {
		return nil, newFetchError(models.KindNotFound, "item %s sem preço", productID)
	}
	currency := price.CurrencyID
	if currency == "" {
		currency = "USD"
	}
	return okResult(price.Value.Decimal, currency, body.Item.Title), nil
}
