package scraper

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"monitor-precos/internal/models"
)

const (
	amazonHost     = "webservices.amazon.com"
	amazonRegion   = "us-east-1"
	amazonService  = "ProductAdvertisingAPI"
	amazonPath     = "/paapi5/getitems"
	amazonTarget   = "com.amazon.paapi5.v1.ProductAdvertisingAPIv1.GetItems"
	amazonRetailer = "https://www.amazon.com/dp/"
)

var asinPattern = regexp.MustCompile(`/(?:dp|gp/product|gp/aw/d)/([A-Za-z0-9]{10})`)

// AmazonConfig contém as credenciais da Product Advertising API
type AmazonConfig struct {
	AccessKey  string
	SecretKey  string
	PartnerTag string
	Endpoint   string // vazio usa a API pública
}

// AmazonFetcher consulta preços pela PA-API 5 com assinatura SigV4
type AmazonFetcher struct {
	cfg    AmazonConfig
	client *Client
	now    func() time.Time
}

// NewAmazonFetcher cria o fetcher da Amazon
func NewAmazonFetcher(cfg AmazonConfig, client *Client) *AmazonFetcher {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://" + amazonHost
	}
	return &AmazonFetcher{cfg: cfg, client: client, now: time.Now}
}

func (a *AmazonFetcher) Platform() models.Platform { return models.PlatformAmazon }

func (a *AmazonFetcher) IsConfigured() bool {
	return a.cfg.AccessKey != "" && a.cfg.SecretKey != "" && a.cfg.PartnerTag != ""
}

func (a *AmazonFetcher) CanHandle(rawURL string) bool {
	return hostHas(rawURL, "amazon.com", "amazon.com.br", "amzn.to")
}

func (a *AmazonFetcher) ExtractProductID(raw string) (string, error) {
	s, u, err := parseRaw(raw)
	if err != nil {
		return "", err
	}
	if u == nil {
		return strings.ToUpper(s), nil
	}
	id, err := extractWith(u, asinPattern)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(id), nil
}

func (a *AmazonFetcher) CanonicalURL(productID string) string {
	return amazonRetailer + productID
}

type amazonResponse struct {
	ItemsResult struct {
		Items []struct {
			ASIN     string `json:"ASIN"`
			ItemInfo struct {
				Title struct {
					DisplayValue string `json:"DisplayValue"`
				} `json:"Title"`
			} `json:"ItemInfo"`
			Offers struct {
				Listings []struct {
					Price struct {
						Amount   decimal.NullDecimal `json:"Amount"`
						Currency string              `json:"Currency"`
					} `json:"Price"`
				} `json:"Listings"`
			} `json:"Offers"`
		} `json:"Items"`
	} `json:"ItemsResult"`
	Errors []struct {
		Code    string `json:"Code"`
		Message string `json:"Message"`
	} `json:"Errors"`
}

func (a *AmazonFetcher) FetchPrice(ctx context.Context, productID string) (*models.PriceResult, error) {
	payload, err := json.Marshal(map[string]any{
		"ItemIds":     []string{productID},
		"PartnerTag":  a.cfg.PartnerTag,
		"PartnerType": "Associates",
		"Marketplace": "www.amazon.com",
		"Resources": []string{
			"ItemInfo.Title",
			"Offers.Listings.Price",
		},
	})
	if err != nil {
		return nil, newFetchError(models.KindUpstreamError, "erro ao montar payload: %v", err)
	}

	req, err := newRequest(ctx, http.MethodPost, a.cfg.Endpoint+amazonPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Content-Encoding", "amz-1.0")
	req.Header.Set("X-Amz-Target", amazonTarget)
	a.sign(req, payload, a.now().UTC())

	var body amazonResponse
	if err := a.client.getJSON(ctx, req, &body); err != nil {
		return nil, err
	}

	if len(body.Errors) > 0 {
		if body.Errors[0].Code == "ItemNotAccessible" || body.Errors[0].Code == "InvalidParameterValue" {
			return nil, newFetchError(models.KindNotFound, "%s", body.Errors[0].Message)
		}
		return nil, newFetchError(models.KindUpstreamError, "%s: %s", body.Errors[0].Code, body.Errors[0].Message)
	}
	if len(body.ItemsResult.Items) == 0 {
		return nil, newFetchError(models.KindNotFound, "ASIN %s sem resultados", productID)
	}

	item := body.ItemsResult.Items[0]
	if len(item.Offers.Listings) == 0 || !item.Offers.Listings[0].Price.Amount.Valid {
		return nil, newFetchError(models.KindNotFound, "ASIN %s sem ofertas", productID)
	}
	price := item.Offers.Listings[0].Price
	currency := price.Currency
	if currency == "" {
		currency = "USD"
	}
	return okResult(price.Amount.Decimal, currency, item.ItemInfo.Title.DisplayValue), nil
}

// sign aplica a assinatura AWS SigV4 na requisição
func (a *AmazonFetcher) sign(req *http.Request, payload []byte, now time.Time) {
	amzDate := now.Format("20060102T150405Z")
	date := now.Format("20060102")

	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("X-Amz-Date", amzDate)

	signed := []string{"content-encoding", "content-type", "host", "x-amz-date", "x-amz-target"}
	sort.Strings(signed)

	var canonicalHeaders strings.Builder
	for _, h := range signed {
		v := req.Header.Get(h)
		if h == "host" {
			v = req.URL.Host
		}
		fmt.Fprintf(&canonicalHeaders, "%s:%s\n", h, strings.TrimSpace(v))
	}
	signedHeaders := strings.Join(signed, ";")

	canonicalRequest := strings.Join([]string{
		req.Method,
		req.URL.EscapedPath(),
		req.URL.RawQuery,
		canonicalHeaders.String(),
		signedHeaders,
		hexSHA256(payload),
	}, "\n")

	scope := strings.Join([]string{date, amazonRegion, amazonService, "aws4_request"}, "/")
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		scope,
		hexSHA256([]byte(canonicalRequest)),
	}, "\n")

	key := hmacSHA256([]byte("AWS4"+a.cfg.SecretKey), date)
	key = hmacSHA256(key, amazonRegion)
	key = hmacSHA256(key, amazonService)
	key = hmacSHA256(key, "aws4_request")
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))

	req.Header.Set("Authorization", fmt.Sprintf(
		"AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		a.cfg.AccessKey, scope, signedHeaders, signature,
	))
}

func hexSHA256(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}
