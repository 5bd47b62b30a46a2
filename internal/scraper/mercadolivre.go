package scraper

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"monitor-precos/internal/models"
)

var (
	mlItemPattern   = regexp.MustCompile(`(ML[A-Z])-?(\d{6,})`)
	mlOffersPrice   = regexp.MustCompile(`"offers"[^}]*"price"\s*:\s*"?([0-9.]+)"?`)
	mlAnyPrice      = regexp.MustCompile(`"price"\s*:\s*"?([0-9.]+)"?`)
	mlJSONName      = regexp.MustCompile(`"name"\s*:\s*"([^"]+)"`)
	mlNonNumeric    = regexp.MustCompile(`[^0-9.]`)
	mlNonDigit      = regexp.MustCompile(`\D`)
	mlCanonicalForm = regexp.MustCompile(`^(ML[A-Z])(\d+)$`)
)

// Seletores do preço promocional, que tem prioridade sobre os demais
var mlPromotionalSelectors = []string{
	".ui-pdp-price__second-line .andes-money-amount__fraction",
	".ui-pdp-price__second-line .andes-money-amount",
	".ui-pdp-price--size-large .andes-money-amount__fraction",
	".andes-money-amount--cents-superscript + .andes-money-amount__fraction",
}

var mlPriceSelectors = []string{
	"[data-testid='price'] .andes-money-amount__fraction",
	".ui-pdp-price__first-line .andes-money-amount__fraction",
	".andes-money-amount__fraction",
	".price-tag-fraction",
}

var mlTitleSelectors = []string{
	"h1.ui-pdp-title",
	"h1[data-testid='title']",
	".ui-pdp-title",
	"h1",
}

// MercadoLivreFetcher extrai o preço da página do produto no Mercado Livre
type MercadoLivreFetcher struct {
	client  *Client
	baseURL string
}

// NewMercadoLivreFetcher cria uma nova instância do fetcher do Mercado Livre
func NewMercadoLivreFetcher(client *Client) *MercadoLivreFetcher {
	return &MercadoLivreFetcher{
		client:  client,
		baseURL: "https://produto.mercadolivre.com.br",
	}
}

func (m *MercadoLivreFetcher) Platform() models.Platform { return models.PlatformMercadoLivre }

// IsConfigured é sempre true: a página é pública
func (m *MercadoLivreFetcher) IsConfigured() bool { return true }

// CanHandle verifica se a URL é do Mercado Livre
func (m *MercadoLivreFetcher) CanHandle(rawURL string) bool {
	return hostHas(rawURL, "mercadolivre.com.br", "mercadolibre.com", "mercadolibre.com.ar", "mercadolibre.com.mx")
}

// ExtractProductID devolve o ID no formato MLB1234567890
func (m *MercadoLivreFetcher) ExtractProductID(raw string) (string, error) {
	s, u, err := parseRaw(raw)
	if err != nil {
		return "", err
	}
	if u == nil {
		if match := mlItemPattern.FindStringSubmatch(strings.ToUpper(s)); match != nil {
			return match[1] + match[2], nil
		}
		return s, nil
	}
	if match := mlItemPattern.FindStringSubmatch(u.EscapedPath()); match != nil {
		return match[1] + match[2], nil
	}
	return lastSegment(u)
}

func (m *MercadoLivreFetcher) CanonicalURL(productID string) string {
	if match := mlCanonicalForm.FindStringSubmatch(productID); match != nil {
		return m.baseURL + "/" + match[1] + "-" + match[2]
	}
	return m.baseURL + "/" + productID
}

// FetchPrice baixa a página e extrai o preço atual
func (m *MercadoLivreFetcher) FetchPrice(ctx context.Context, productID string) (*models.PriceResult, error) {
	req, err := newRequest(ctx, http.MethodGet, m.CanonicalURL(productID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := m.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, newFetchError(models.KindUpstreamError, "erro ao ler HTML: %v", err)
	}

	priceText := findPriceText(doc)
	if priceText == "" {
		return nil, newFetchError(models.KindNotFound, "preço não encontrado na página")
	}

	price, err := parseBRL(priceText)
	if err != nil {
		return nil, newFetchError(models.KindUpstreamError, "erro ao parsear preço '%s': %v", priceText, err)
	}

	return okResult(price, "BRL", findTitle(doc)), nil
}

func findPriceText(doc *goquery.Document) string {
	// Primeiro, o preço promocional
	for _, selector := range mlPromotionalSelectors {
		if text := amountText(doc.Find(selector).First()); text != "" {
			return text
		}
	}

	// Com vários preços na página, o menor geralmente é o promocional
	var best string
	var bestVal decimal.Decimal
	for _, selector := range mlPriceSelectors {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := amountText(s)
			val, err := parseBRL(text)
			if err != nil {
				return
			}
			if best == "" || val.LessThan(bestVal) {
				best, bestVal = text, val
			}
		})
	}
	if best != "" {
		return best
	}

	// Atributos e meta tags. O conteúdo destes já vem no formato 1234.56
	if v, ok := doc.Find("meta[property='product:price:amount']").First().Attr("content"); ok && v != "" {
		return strings.ReplaceAll(v, ".", ",")
	}

	// JSON-LD, priorizando o preço em "offers"
	var fromJSON string
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := s.Text()
		if match := mlOffersPrice.FindStringSubmatch(text); match != nil {
			fromJSON = match[1]
			return false
		}
		if match := mlAnyPrice.FindStringSubmatch(text); match != nil && fromJSON == "" {
			fromJSON = match[1]
		}
		return true
	})
	return strings.ReplaceAll(fromJSON, ".", ",")
}

// Classe da parte inteira do preço e a classe irmã com os centavos
var mlCentsSibling = map[string]string{
	"andes-money-amount__fraction": ".andes-money-amount__cents",
	"price-tag-fraction":           ".price-tag-cents",
}

// amountText lê a parte inteira do preço e junta os centavos quando a
// página os coloca num elemento separado
func amountText(s *goquery.Selection) string {
	text := strings.TrimSpace(s.Text())
	if text == "" {
		return ""
	}
	for class, centsSelector := range mlCentsSibling {
		if !s.HasClass(class) {
			continue
		}
		cents := strings.TrimSpace(s.NextAllFiltered(centsSelector).First().Text())
		if cents != "" && !mlNonDigit.MatchString(cents) {
			return text + "," + cents
		}
	}
	return text
}

func findTitle(doc *goquery.Document) string {
	if title := firstText(doc, mlTitleSelectors); title != "" {
		return title
	}
	var name string
	doc.Find("script[type='application/ld+json']").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if match := mlJSONName.FindStringSubmatch(s.Text()); match != nil {
			name = match[1]
			return false
		}
		return true
	})
	return name
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if text != "" {
			return text
		}
	}
	return ""
}

// parseBRL converte "1.234,56" em 1234.56
func parseBRL(text string) (decimal.Decimal, error) {
	clean := strings.ReplaceAll(text, ".", "")
	clean = strings.ReplaceAll(clean, ",", ".")
	clean = mlNonNumeric.ReplaceAllString(clean, "")
	return decimal.NewFromString(clean)
}
