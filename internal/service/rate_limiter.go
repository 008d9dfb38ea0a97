package service

import (
	"context"
	"strings"
	"sync"
	"time"
)

// RateLimiter limita la frecuencia de operaciones por clave con ventana fija.
type RateLimiter interface {
	Allow(ctx context.Context, key string) Decision
}

// Decision es la respuesta del limiter para un intento.
// RetryAfter es lo que falta para que reinicie la ventana de la clave.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// LimitError acompaña a ErrRateLimited con el tiempo de espera sugerido.
type LimitError struct {
	RetryAfter time.Duration
}

func (e *LimitError) Error() string { return ErrRateLimited.Error() }
func (e *LimitError) Unwrap() error { return ErrRateLimited }

type fixedWindow struct {
	start time.Time
	count int
}

type memoryRateLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	max       int
	now       func() time.Time
	lastSweep time.Time
	windows   map[string]fixedWindow
}

// NewMemoryRateLimiter crea un rate limiter de ventana fija en memoria.
func NewMemoryRateLimiter(win time.Duration, max int) RateLimiter {
	if max <= 0 {
		max = 1
	}
	if win <= 0 {
		win = time.Minute
	}
	return &memoryRateLimiter{
		window:  win,
		max:     max,
		now:     time.Now,
		windows: make(map[string]fixedWindow),
	}
}

func (l *memoryRateLimiter) Allow(_ context.Context, key string) Decision {
	key = strings.TrimSpace(key)
	if key == "" {
		return Decision{RetryAfter: l.window}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(now)
	}

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.window {
		w = fixedWindow{start: now}
	}
	retryAfter := w.start.Add(l.window).Sub(now)
	if w.count >= l.max {
		l.windows[key] = w
		return Decision{RetryAfter: retryAfter}
	}
	w.count++
	l.windows[key] = w
	return Decision{Allowed: true, RetryAfter: retryAfter}
}

// sweep descarta ventanas vencidas; corre a lo sumo una vez por ventana.
func (l *memoryRateLimiter) sweep(now time.Time) {
	l.lastSweep = now
	for k, w := range l.windows {
		if now.Sub(w.start) >= l.window {
			delete(l.windows, k)
		}
	}
}
