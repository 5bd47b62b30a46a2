package closer

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Func fecha um recurso respeitando o contexto
type Func func(ctx context.Context) error

// Closer acumula funções de encerramento e as executa em ordem inversa (LIFO)
type Closer struct {
	mu    sync.Mutex
	once  sync.Once
	funcs []namedFunc
}

type namedFunc struct {
	name string
	f    Func
}

// New cria um Closer vazio
func New() *Closer {
	return &Closer{}
}

// Add registra um recurso a ser fechado
func (c *Closer) Add(name string, f Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.funcs = append(c.funcs, namedFunc{name: name, f: f})
}

// Close fecha todos os recursos do último para o primeiro. Se o contexto
// expirar no meio, os recursos restantes não são esperados.
func (c *Closer) Close(ctx context.Context) error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		funcs := c.funcs
		c.mu.Unlock()

		var errs []string
		for i := len(funcs) - 1; i >= 0; i-- {
			nf := funcs[i]
			done := make(chan error, 1)
			go func() { done <- nf.f(ctx) }()

			select {
			case ferr := <-done:
				if ferr != nil {
					errs = append(errs, fmt.Sprintf("%s: %v", nf.name, ferr))
				}
			case <-ctx.Done():
				errs = append(errs, fmt.Sprintf("encerramento interrompido em %s (%d restantes)", nf.name, i))
				err = fmt.Errorf("shutdown: %s", strings.Join(errs, "; "))
				return
			}
		}

		if len(errs) > 0 {
			err = fmt.Errorf("shutdown: %s", strings.Join(errs, "; "))
		}
	})
	return err
}
