package scraper

import (
	"context"
	"net/http"
	"net/url"
	"regexp"

	"github.com/shopspring/decimal"

	"monitor-precos/internal/models"
)

// chave pública usada pelo próprio site da Target
const targetPublicKey = "9f36aeafbe60771e321a7cc95a78140772ab3e96"

var targetTCINPattern = regexp.MustCompile(`(?:/A-|[?&]tcin=)(\d+)`)

// TargetConfig contém a chave da API redsky
type TargetConfig struct {
	APIKey   string
	StoreID  string
	Endpoint string
}

// TargetFetcher consulta preços pela API redsky da Target
type TargetFetcher struct {
	cfg    TargetConfig
	client *Client
}

// NewTargetFetcher cria o fetcher da Target. Sem chave configurada usa a pública.
func NewTargetFetcher(cfg TargetConfig, client *Client) *TargetFetcher {
	if cfg.APIKey == "" {
		cfg.APIKey = targetPublicKey
	}
	if cfg.StoreID == "" {
		cfg.StoreID = "3991"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://redsky.target.com/redsky_aggregations/v1/web/pdp_client_v1"
	}
	return &TargetFetcher{cfg: cfg, client: client}
}

func (f *TargetFetcher) Platform() models.Platform { return models.PlatformTarget }

func (f *TargetFetcher) IsConfigured() bool { return f.cfg.APIKey != "" }

func (f *TargetFetcher) CanHandle(rawURL string) bool {
	return hostHas(rawURL, "target.com")
}

func (f *TargetFetcher) ExtractProductID(raw string) (string, error) {
	s, u, err := parseRaw(raw)
	if err != nil {
		return "", err
	}
	if u == nil {
		return s, nil
	}
	return extractWith(u, targetTCINPattern)
}

func (f *TargetFetcher) CanonicalURL(productID string) string {
	return "https://www.target.com/p/-/A-" + productID
}

type targetResponse struct {
	Data struct {
		Product struct {
			TCIN string `json:"tcin"`
			Item struct {
				ProductDescription struct {
					Title string `json:"title"`
				} `json:"product_description"`
			} `json:"item"`
			Price struct {
				CurrentRetail decimal.NullDecimal `json:"current_retail"`
				RegRetail     decimal.NullDecimal `json:"reg_retail"`
			} `json:"price"`
		} `json:"product"`
	} `json:"data"`
}

func (f *TargetFetcher) FetchPrice(ctx context.Context, productID string) (*models.PriceResult, error) {
	q := url.Values{}
	q.Set("key", f.cfg.APIKey)
	q.Set("tcin", productID)
	q.Set("pricing_store_id", f.cfg.StoreID)

	req, err := newRequest(ctx, http.MethodGet, f.cfg.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var body targetResponse
	if err := f.client.getJSON(ctx, req, &body); err != nil {
		return nil, err
	}

	p := body.Data.Product
	price := p.Price.CurrentRetail
	if !price.Valid {
		price = p.Price.RegRetail
	}
	if !price.Valid {
		return nil, newFetchError(models.KindNotFound, "tcin %s sem preço", productID)
	}
	return okResult(price.Decimal, "USD", p.Item.ProductDescription.Title), nil
}
