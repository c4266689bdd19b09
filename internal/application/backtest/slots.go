package backtest

import (
	"container/list"
	"context"
	"sync"
)

// slots es un semáforo con límite ajustable y cola FIFO estricta.
type slots struct {
	mu      sync.Mutex
	limit   int
	used    int
	waiters *list.List // de chan struct{}
}

func newSlots(limit int) *slots {
	return &slots{limit: max(limit, 1), waiters: list.New()}
}

// tryAcquire toma un slot si hay uno libre y nadie espera delante.
func (s *slots) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used < s.limit && s.waiters.Len() == 0 {
		s.used++
		return true
	}
	return false
}

// acquire espera un slot en orden de llegada o hasta que ctx se cancele.
func (s *slots) acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.used < s.limit && s.waiters.Len() == 0 {
		s.used++
		s.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	el := s.waiters.PushBack(ready)
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		select {
		case <-ready:
			// el slot llegó a la vez que la cancelación: se devuelve
			s.mu.Unlock()
			s.release()
		default:
			s.waiters.Remove(el)
			s.mu.Unlock()
		}
		return ctx.Err()
	}
}

// release libera un slot y lo entrega directamente al primero de la cola.
func (s *slots) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.used--
	s.grantLocked()
}

// setLimit cambia el límite; si sube, despierta a los que esperan.
func (s *slots) setLimit(limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = max(limit, 1)
	s.grantLocked()
}

func (s *slots) grantLocked() {
	for s.used < s.limit && s.waiters.Len() > 0 {
		el := s.waiters.Front()
		s.waiters.Remove(el)
		s.used++
		close(el.Value.(chan struct{}))
	}
}

func (s *slots) inUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

func (s *slots) queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiters.Len()
}
