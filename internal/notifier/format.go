package notifier

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"monitor-precos/internal/models"
)

func printerFor(currency string) *message.Printer {
	if strings.EqualFold(currency, "BRL") {
		return message.NewPrinter(language.BrazilianPortuguese)
	}
	return message.NewPrinter(language.AmericanEnglish)
}

// FormatMoney formata o valor com separadores do idioma da moeda
func FormatMoney(amount decimal.Decimal, currency string) string {
	p := printerFor(currency)
	return p.Sprintf("%s %.2f", currency, amount.Round(2).InexactFloat64())
}

func displayTitle(product *models.TrackedProduct) string {
	if product.Title != "" {
		return product.Title
	}
	return product.ProductID
}

// FormatAlert monta o assunto e o texto do alerta de preço
func FormatAlert(product *models.TrackedProduct, result models.PriceResult) (subject, body string) {
	currency := product.Currency
	if result.Currency != "" {
		currency = result.Currency
	}
	price := result.Price.Decimal
	if !result.Price.Valid {
		price = product.CurrentPrice.Decimal
	}

	subject = fmt.Sprintf("Alerta de preço: %s por %s", displayTitle(product), FormatMoney(price, currency))

	var b strings.Builder
	b.WriteString("🎉 PROMOÇÃO DETECTADA!\n\n")
	fmt.Fprintf(&b, "Produto: %s\n", displayTitle(product))
	fmt.Fprintf(&b, "Loja: %s\n", product.Platform)
	fmt.Fprintf(&b, "Preço atual: %s\n", FormatMoney(price, currency))
	fmt.Fprintf(&b, "Preço alvo: %s\n", FormatMoney(product.TargetPrice, currency))
	if savings := product.TargetPrice.Sub(price); savings.IsPositive() {
		fmt.Fprintf(&b, "Abaixo do alvo: %s\n", FormatMoney(savings, currency))
	}
	if result.Placeholder {
		b.WriteString("(preço fictício de desenvolvimento)\n")
	}
	fmt.Fprintf(&b, "\nLink: %s", product.ProductURL)
	return subject, b.String()
}

// formatHTML monta a versão HTML do e-mail
func formatHTML(subject, message string, product *models.TrackedProduct) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"></head>`)
	b.WriteString(`<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">`)
	fmt.Fprintf(&b, "<h2>%s</h2>", html.EscapeString(subject))
	for _, line := range strings.Split(message, "\n") {
		if line == "" {
			continue
		}
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(line))
	}
	if product != nil && product.ProductURL != "" {
		fmt.Fprintf(&b, `<a href="%s">Ver produto</a>`, html.EscapeString(product.ProductURL))
	}
	b.WriteString("</body></html>")
	return b.String()
}
