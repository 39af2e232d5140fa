package service

import (
	"fmt"
	"sync"
)

// inflightGuard tracks which (student, category) pairs currently have an
// evaluation pipeline running. It is process-local by design; multi-instance
// deployments would need a distributed lease instead, which is an acknowledged
// scaling boundary rather than something this component papers over.
type inflightGuard struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newInflightGuard() *inflightGuard {
	return &inflightGuard{keys: make(map[string]struct{})}
}

// Acquire marks the key as in flight. It returns false without blocking when
// the key is already held.
func (g *inflightGuard) Acquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.keys[key]; held {
		return false
	}

	g.keys[key] = struct{}{}
	return true
}

// Release frees the key. Releasing an unheld key is a no-op.
func (g *inflightGuard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.keys, key)
}

func inflightKey(studentID uint, category string) string {
	return fmt.Sprintf("student:%d:category:%s", studentID, category)
}
