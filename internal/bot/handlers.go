package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"monitor-precos/internal/models"
	"monitor-precos/internal/notifier"
	"monitor-precos/internal/tracker"
	"monitor-precos/pkg/e"
)

// escapeHTML escapa caracteres especiais do HTML
func escapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}

// handle despacha uma mensagem para o comando correspondente
func (b *Bot) handle(ctx context.Context, message *tgbotapi.Message) {
	parts := strings.Fields(message.Text)
	if len(parts) == 0 {
		return
	}

	command := strings.ToLower(parts[0])
	// Remover @botname se presente
	if idx := strings.Index(command, "@"); idx > 0 {
		command = command[:idx]
	}
	chatID := message.Chat.ID

	// Comandos públicos (não precisam de autorização)
	isPublicCommand := command == "/start" || command == "/help"
	if !isPublicCommand && b.authorizedChatID != 0 && chatID != b.authorizedChatID {
		b.sendText(chatID, "Você não está autorizado a usar este bot.")
		return
	}

	args := parts[1:]
	switch command {
	case "/start", "/help":
		b.handleHelp(chatID)
	case "/add":
		b.handleAddProduct(ctx, chatID, args)
	case "/list":
		b.handleListProducts(ctx, chatID)
	case "/remove":
		b.handleRemoveProduct(ctx, chatID, args)
	case "/check":
		b.handleCheckProduct(ctx, chatID, args)
	case "/rearm":
		b.handleRearm(ctx, chatID, args)
	case "/target":
		b.handleTarget(ctx, chatID, args)
	default:
		b.sendText(chatID, "Comando não reconhecido. Use /help para ver os comandos disponíveis.")
	}
}

const helpText = `🤖 <b>Bot de Monitoramento de Preços</b>

<b>Comandos disponíveis:</b>

<b>/add</b> - Adicionar novo produto para monitorar
Uso: /add &lt;URL&gt; &lt;preço_alvo&gt; [e-mail]
Exemplo: /add https://www.amazon.com/dp/B08N5WRWNW 79.99
Exemplo: /add https://produto.mercadolivre.com.br/MLB-1234567890 3000 eu@exemplo.com

<b>/list</b> - Listar todos os produtos monitorados

<b>/remove &lt;id&gt;</b> - Remover produto do monitoramento
Exemplo: /remove 1

<b>/check &lt;id&gt;</b> - Verificar preço de um produto agora
Exemplo: /check 1

<b>/rearm &lt;id&gt;</b> - Permitir um novo alerta para o produto
Exemplo: /rearm 1

<b>/target &lt;id&gt; &lt;preço_alvo&gt; [rearm]</b> - Alterar o preço alvo
Exemplo: /target 1 2500 rearm

<b>/help</b> - Mostrar esta mensagem de ajuda
`

func (b *Bot) handleHelp(chatID int64) {
	b.sendHTML(chatID, helpText)
}

func (b *Bot) handleAddProduct(ctx context.Context, chatID int64, args []string) {
	if len(args) < 2 {
		b.sendText(chatID, "❌ Formato incorreto.\n\nUso: /add <URL> <preço_alvo> [e-mail]\n\nExemplo: /add https://www.amazon.com/dp/B08N5WRWNW 79.99")
		return
	}

	target, err := parsePrice(args[1])
	if err != nil {
		b.sendText(chatID, "❌ Preço inválido. Use um valor numérico positivo.")
		return
	}

	req := tracker.CreateRequest{
		RawURLOrID:  args[0],
		TargetPrice: target,
		// O chat que cadastrou recebe o alerta
		Targets: []models.NotificationTarget{{Channel: models.ChannelTelegram, Recipient: strconv.FormatInt(chatID, 10)}},
	}
	if len(args) > 2 {
		req.NotifyEmail = args[2]
	}

	p, err := b.service.Create(ctx, req)
	if err != nil {
		b.log.Warnf("Erro ao adicionar produto %q: %s", args[0], err)
		b.sendText(chatID, userError("Erro ao adicionar produto", err))
		return
	}

	var response strings.Builder
	response.WriteString("✅ <b>Produto adicionado com sucesso!</b>\n\n")
	response.WriteString(fmt.Sprintf("🆔 ID: %d\n", p.ID))
	response.WriteString(fmt.Sprintf("🏬 Loja: %s (%s)\n", p.Platform, escapeHTML(p.ProductID)))
	response.WriteString(fmt.Sprintf("🎯 Preço alvo: %s\n", notifier.FormatMoney(p.TargetPrice, p.Currency)))
	if p.NotifyEmail != "" {
		response.WriteString(fmt.Sprintf("📧 E-mail: %s\n", escapeHTML(p.NotifyEmail)))
	}
	response.WriteString(fmt.Sprintf("🔗 %s", escapeHTML(p.ProductURL)))

	b.sendHTML(chatID, response.String())
}

func (b *Bot) handleListProducts(ctx context.Context, chatID int64) {
	products, err := b.service.List(ctx)
	if err != nil {
		b.log.Errorf(err, "Erro ao listar produtos")
		b.sendText(chatID, "❌ Erro ao listar produtos.")
		return
	}

	if len(products) == 0 {
		b.sendText(chatID, "📋 Nenhum produto sendo monitorado no momento.")
		return
	}

	var response strings.Builder
	response.WriteString("📋 <b>Produtos em Monitoramento:</b>\n\n")

	for i := range products {
		p := &products[i]
		response.WriteString(fmt.Sprintf("🆔 <b>ID: %d</b>\n", p.ID))
		if p.Title != "" {
			response.WriteString(fmt.Sprintf("📦 %s\n", escapeHTML(p.Title)))
		}
		response.WriteString(fmt.Sprintf("🏬 %s (%s)\n", p.Platform, escapeHTML(p.ProductID)))

		if p.CurrentPrice.Valid {
			response.WriteString(fmt.Sprintf("💰 <b>Preço atual: %s</b>\n", notifier.FormatMoney(p.CurrentPrice.Decimal, p.Currency)))
		} else {
			response.WriteString("💰 <b>Preço atual: Não verificado ainda</b>\n")
		}

		target := notifier.FormatMoney(p.TargetPrice, p.Currency)
		switch {
		case p.AlertSent:
			response.WriteString(fmt.Sprintf("🎯 Preço alvo: %s ✅ <b>ALERTA ENVIADO</b> (use /rearm %d)\n", target, p.ID))
		case p.CurrentPrice.Valid && p.CurrentPrice.Decimal.GreaterThan(p.TargetPrice):
			diff := p.CurrentPrice.Decimal.Sub(p.TargetPrice)
			response.WriteString(fmt.Sprintf("🎯 Preço alvo: %s (faltam %s)\n", target, notifier.FormatMoney(diff, p.Currency)))
		default:
			response.WriteString(fmt.Sprintf("🎯 Preço alvo: %s\n", target))
		}

		if p.Disabled {
			response.WriteString(fmt.Sprintf("⚠️ <b>Desativado</b> após %d falhas: %s (use /rearm %d)\n", p.ConsecutiveErrors, escapeHTML(p.LastError), p.ID))
		}

		if p.LastCheckedAt != nil {
			response.WriteString(fmt.Sprintf("🕐 Última verificação: %s\n", p.LastCheckedAt.Local().Format("02/01/2006 15:04")))
		} else {
			response.WriteString("🕐 Última verificação: Nunca\n")
		}

		response.WriteString(fmt.Sprintf("🔗 %s\n\n", escapeHTML(p.ProductURL)))
	}

	b.sendHTML(chatID, response.String())
}

func (b *Bot) handleRemoveProduct(ctx context.Context, chatID int64, args []string) {
	id, ok := b.parseIDArg(chatID, args, "/remove <id>\n\nExemplo: /remove 1")
	if !ok {
		return
	}

	product, err := b.service.Get(ctx, id)
	if err != nil {
		b.sendText(chatID, userError("Erro ao remover produto", err))
		return
	}

	if err := b.service.Delete(ctx, id); err != nil {
		b.log.Errorf(err, "Erro ao remover produto %d", id)
		b.sendText(chatID, userError("Erro ao remover produto", err))
		return
	}

	b.sendText(chatID, fmt.Sprintf("✅ Produto removido: %s", displayName(product)))
}

func (b *Bot) handleCheckProduct(ctx context.Context, chatID int64, args []string) {
	id, ok := b.parseIDArg(chatID, args, "/check <id>\n\nExemplo: /check 1")
	if !ok {
		return
	}

	before, err := b.service.Get(ctx, id)
	if err != nil {
		b.sendText(chatID, userError("Erro ao verificar preço", err))
		return
	}

	// Enviar mensagem de "verificando"
	sentMessageID := 0
	if sent, err := b.api.Send(tgbotapi.NewMessage(chatID, "⏳ Verificando preço...")); err == nil {
		sentMessageID = sent.MessageID
	}

	out, err := b.service.CheckNow(ctx, id)
	if err != nil {
		b.log.Errorf(err, "Erro ao verificar produto %d", id)
		b.editOrSend(chatID, sentMessageID, userError("Erro ao verificar preço", err))
		return
	}

	b.editOrSend(chatID, sentMessageID, formatCheck(before, out))
}

func formatCheck(before *models.TrackedProduct, out models.CheckOutcome) string {
	var response strings.Builder
	response.WriteString(fmt.Sprintf("📊 <b>Produto: %s</b>\n\n", escapeHTML(displayName(before))))

	res := out.Result
	if !res.OK() {
		response.WriteString(fmt.Sprintf("❌ Não foi possível obter o preço (%s)\n", res.ErrorKind))
		if before.CurrentPrice.Valid {
			response.WriteString(fmt.Sprintf("Último preço conhecido: %s\n", notifier.FormatMoney(before.CurrentPrice.Decimal, before.Currency)))
		}
		response.WriteString(fmt.Sprintf("Link: %s", escapeHTML(before.ProductURL)))
		return response.String()
	}

	cur := res.Currency
	if cur == "" {
		cur = before.Currency
	}
	response.WriteString(fmt.Sprintf("Preço atual: %s\n", notifier.FormatMoney(res.Price.Decimal, cur)))
	if before.CurrentPrice.Valid {
		response.WriteString(fmt.Sprintf("Preço anterior: %s\n", notifier.FormatMoney(before.CurrentPrice.Decimal, before.Currency)))
	}
	response.WriteString(fmt.Sprintf("Preço alvo: %s\n", notifier.FormatMoney(before.TargetPrice, before.Currency)))
	if res.Placeholder {
		response.WriteString("⚠️ Preço simulado: loja sem credenciais configuradas\n")
	}
	response.WriteString(fmt.Sprintf("Link: %s", escapeHTML(before.ProductURL)))

	switch {
	case out.Fired:
		response.WriteString("\n\n✅ <b>META ATINGIDA!</b> Alerta enviado.")
	case out.Decision == models.DecisionFire:
		response.WriteString("\n\n✅ Meta atingida, alerta já enviado anteriormente.")
	case before.AlertSent && !res.Price.Decimal.GreaterThan(before.TargetPrice):
		response.WriteString("\n\n✅ Produto abaixo do preço alvo (alerta já enviado).")
	}
	return response.String()
}

func (b *Bot) handleRearm(ctx context.Context, chatID int64, args []string) {
	id, ok := b.parseIDArg(chatID, args, "/rearm <id>\n\nExemplo: /rearm 1")
	if !ok {
		return
	}

	p, err := b.service.Rearm(ctx, id)
	if err != nil {
		b.sendText(chatID, userError("Erro ao rearmar alerta", err))
		return
	}
	b.sendText(chatID, fmt.Sprintf("🔔 Alerta rearmado: %s", displayName(p)))
}

func (b *Bot) handleTarget(ctx context.Context, chatID int64, args []string) {
	usage := "❌ Formato incorreto.\n\nUso: /target <id> <preço_alvo> [rearm]\n\nExemplo: /target 1 2500 rearm"
	if len(args) < 2 {
		b.sendText(chatID, usage)
		return
	}

	id, ok := b.parseIDArg(chatID, args[:1], "/target <id> <preço_alvo> [rearm]")
	if !ok {
		return
	}
	target, err := parsePrice(args[1])
	if err != nil {
		b.sendText(chatID, "❌ Preço inválido. Use um valor numérico positivo.")
		return
	}
	rearm := len(args) > 2 && strings.EqualFold(args[2], "rearm")

	p, err := b.service.UpdateTarget(ctx, id, target, rearm)
	if err != nil {
		b.sendText(chatID, userError("Erro ao alterar preço alvo", err))
		return
	}

	response := fmt.Sprintf("✅ Novo preço alvo de %s: %s", displayName(p), notifier.FormatMoney(p.TargetPrice, p.Currency))
	if p.AlertSent {
		response += fmt.Sprintf("\n\nO alerta já foi enviado. Use /rearm %d para receber outro.", p.ID)
	}
	b.sendText(chatID, response)
}

func (b *Bot) parseIDArg(chatID int64, args []string, usage string) (int64, bool) {
	if len(args) < 1 {
		b.sendText(chatID, "❌ Formato incorreto.\n\nUso: "+usage)
		return 0, false
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		b.sendText(chatID, "❌ ID inválido.")
		return 0, false
	}
	return id, true
}

// parsePrice aceita ponto ou vírgula como separador decimal
func parsePrice(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, ",") && !strings.Contains(raw, ".") {
		raw = strings.Replace(raw, ",", ".", 1)
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if !price.IsPositive() {
		return decimal.Zero, e.Validation("preço alvo deve ser positivo")
	}
	return price, nil
}

// userError monta a mensagem de erro mostrada no chat
func userError(action string, err error) string {
	switch {
	case errors.Is(err, e.ErrProductNotFound):
		return "❌ Produto não encontrado."
	case errors.Is(err, e.ErrUnknownPlatform):
		return "❌ Loja não suportada."
	case errors.Is(err, e.ErrValidation):
		return fmt.Sprintf("❌ %s: %s", action, strings.TrimPrefix(err.Error(), e.ErrValidation.Error()+": "))
	default:
		return fmt.Sprintf("❌ %s. Tente novamente mais tarde.", action)
	}
}

func displayName(p *models.TrackedProduct) string {
	if p.Title != "" {
		return p.Title
	}
	return fmt.Sprintf("%s %s", p.Platform, p.ProductID)
}

func (b *Bot) sendText(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Errorf(err, "Erro ao enviar mensagem para %d", chatID)
	}
}

func (b *Bot) sendHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warnf("Erro ao enviar mensagem com HTML: %s", err)
		// Tentar sem formatação
		msg.ParseMode = ""
		if _, err := b.api.Send(msg); err != nil {
			b.log.Errorf(err, "Erro ao enviar mensagem sem formatação")
		}
	}
}

// editOrSend substitui a mensagem de "verificando" ou envia uma nova
func (b *Bot) editOrSend(chatID int64, messageID int, text string) {
	if messageID != 0 {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
		edit.ParseMode = tgbotapi.ModeHTML
		_, err := b.api.Send(edit)
		if err == nil {
			return
		}
		b.log.Warnf("Erro ao editar mensagem (tentando enviar nova): %s", err)
	}
	b.sendHTML(chatID, text)
}
