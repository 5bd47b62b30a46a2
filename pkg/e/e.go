package e

import "fmt"

var (
	// Entrada inválida (URL, ID, moeda, e-mail, preço alvo)
	ErrValidation = fmt.Errorf("validation error")

	// Plataforma ou canal sem credenciais
	ErrNotConfigured = fmt.Errorf("not configured")

	// Falhas de busca de preço
	ErrNotFound    = fmt.Errorf("product not found upstream")
	ErrRateLimited = fmt.Errorf("rate limited")
	ErrUpstream    = fmt.Errorf("upstream error")
	ErrTimeout     = fmt.Errorf("timeout")

	ErrUnknownPlatform = fmt.Errorf("unknown platform")
	ErrNotification    = fmt.Errorf("notification error")

	// Falhas do banco de dados
	ErrPersistence     = fmt.Errorf("persistence error")
	ErrProductNotFound = fmt.Errorf("tracked product not found")
)

// Wrap envolve o erro com uma mensagem de contexto
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}

// Validation cria um erro de validação com detalhe legível
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
