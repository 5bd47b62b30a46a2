// Package scheduler dispara os ciclos de verificação em intervalo fixo,
// sem nunca sobrepor dois ciclos.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"monitor-precos/internal/metrics"
	"monitor-precos/internal/models"
	"monitor-precos/pkg/logger"
)

var (
	// ErrCycleRunning indica que o disparo foi ignorado porque já há um ciclo em execução
	ErrCycleRunning = errors.New("ciclo já em execução")
	// ErrStopped indica que o agendador já foi parado
	ErrStopped = errors.New("agendador parado")
)

// CycleRunner executa um ciclo completo
type CycleRunner interface {
	RunCycle(ctx context.Context) (*models.CycleReport, error)
}

// Scheduler envolve o robfig/cron e controla o ciclo em execução
type Scheduler struct {
	cron   *cron.Cron
	runner CycleRunner
	spec   string
	log    logger.Logger

	running atomic.Bool
	skipped atomic.Int64

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

// New cria um Scheduler que dispara a cada interval
func New(runner CycleRunner, interval time.Duration, log logger.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		runner: runner,
		spec:   fmt.Sprintf("@every %s", interval),
		log:    log,
	}
}

// Start registra o job e inicia o cron. Também executa um ciclo imediatamente,
// sem esperar o primeiro intervalo.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.ctx != nil {
		s.mu.Unlock()
		return errors.New("agendador já iniciado")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	_, err := s.cron.AddFunc(s.spec, func() {
		s.run(s.ctx, "cron")
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.log.Infof("Agendador iniciado. Verificando produtos: %s", s.spec)

	go s.run(s.ctx, "início")
	return nil
}

// RunNow executa um ciclo completo imediatamente, com a mesma regra de não sobrepor
func (s *Scheduler) RunNow(ctx context.Context) (*models.CycleReport, error) {
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()

	if parent != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(parent, cancel)
		defer stop()
	}
	return s.run(ctx, "manual")
}

// Skipped retorna quantos disparos foram ignorados por sobreposição
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

// Running informa se há um ciclo em execução
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

func (s *Scheduler) run(ctx context.Context, source string) (*models.CycleReport, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, ErrStopped
	}
	if !s.running.CompareAndSwap(false, true) {
		s.mu.Unlock()
		s.skipped.Add(1)
		metrics.RecordSkippedCycle()
		s.log.Warnf("Disparo %s ignorado: ciclo anterior ainda em execução", source)
		return nil, ErrCycleRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	defer s.running.Store(false)

	s.log.Debugf("Ciclo iniciado (%s)", source)
	report, err := s.runner.RunCycle(ctx)
	if err != nil {
		s.log.Errorf(err, "Ciclo falhou (%s)", source)
	}
	return report, err
}

// Stop para o cron, cancela o ciclo em andamento e espera ele terminar
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Infof("Agendador parado")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("aguardando ciclo em execução: %w", ctx.Err())
	}
}
