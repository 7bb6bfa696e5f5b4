package capture

import (
	"context"
	"os"
	"strconv"
	"sync"
)

var (
	retrievalSemaphore chan struct{}
	semaphoreOnce      sync.Once
)

// initSemaphore sizes the retrieval semaphore from MAX_CONCURRENT_RETRIEVALS.
func initSemaphore() {
	maxConcurrent := 4
	if v := os.Getenv("MAX_CONCURRENT_RETRIEVALS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxConcurrent = n
		}
	}
	retrievalSemaphore = make(chan struct{}, maxConcurrent)
}

// acquireRetrievalSlot blocks until a retrieval slot is available or the
// context is cancelled. Returns true if a slot was acquired.
func acquireRetrievalSlot(ctx context.Context) bool {
	semaphoreOnce.Do(initSemaphore)
	select {
	case retrievalSemaphore <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

// releaseRetrievalSlot releases a previously acquired slot.
func releaseRetrievalSlot() {
	semaphoreOnce.Do(initSemaphore)
	select {
	case <-retrievalSemaphore:
	default:
	}
}

// GetActiveRetrievals returns the number of retrievals currently holding a slot.
func GetActiveRetrievals() int {
	semaphoreOnce.Do(initSemaphore)
	return len(retrievalSemaphore)
}

// GetMaxConcurrentRetrievals returns the configured slot count.
func GetMaxConcurrentRetrievals() int {
	semaphoreOnce.Do(initSemaphore)
	return cap(retrievalSemaphore)
}
