// Package jitter calcula esperas com aleatoriedade para novas tentativas,
// evitando que vários clientes repitam a requisição no mesmo instante.
package jitter

import (
	"math/rand"
	"sync"
	"time"
)

// DefaultJitter é o fator padrão (até +50%)
const DefaultJitter = 0.5

var (
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
	rngMu sync.Mutex
)

// Duration retorna d acrescido de um valor aleatório em [0, d*factor]
func Duration(d time.Duration, factor float64) time.Duration {
	rngMu.Lock()
	extra := rng.Float64() * factor * float64(d)
	rngMu.Unlock()
	return d + time.Duration(extra)
}

// ExponentialBackoff dobra base a cada tentativa (a partir de zero), limitado a max,
// e aplica o jitter no final.
func ExponentialBackoff(base, max time.Duration, attempt int, factor float64) time.Duration {
	backoff := base
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= max {
			backoff = max
			break
		}
	}
	return Duration(backoff, factor)
}
