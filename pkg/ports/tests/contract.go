package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/nodeflow/pkg/ports"
)

// LockerContractTest is a reusable test suite that verifies if an adapter complies with ports.DistributedLocker.
func LockerContractTest(t *testing.T, locker ports.DistributedLocker) {
	t.Helper()

	// 1. Lock and unlock
	t.Run("Lock_Unlock", func(t *testing.T) {
		ctx := context.Background()
		unlock, err := locker.Lock(ctx, "contract-basic", time.Second)
		if err != nil {
			t.Fatalf("unexpected error acquiring lock: %v", err)
		}
		if err := unlock(ctx); err != nil {
			t.Fatalf("unexpected error releasing lock: %v", err)
		}

		// Re-acquire must succeed once released.
		unlock, err = locker.Lock(ctx, "contract-basic", time.Second)
		if err != nil {
			t.Fatalf("unexpected error re-acquiring lock: %v", err)
		}
		_ = unlock(ctx)
	})

	// 2. Held lock blocks until context deadline
	t.Run("Lock_Contended", func(t *testing.T) {
		ctx := context.Background()
		unlock, err := locker.Lock(ctx, "contract-contended", 5*time.Second)
		if err != nil {
			t.Fatalf("unexpected error acquiring lock: %v", err)
		}
		defer func() { _ = unlock(ctx) }()

		short, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
		defer cancel()
		if _, err := locker.Lock(short, "contract-contended", time.Second); err == nil {
			t.Fatal("expected error acquiring a held lock, got nil")
		}
	})

	// 3. Mutual exclusion
	t.Run("Lock_Exclusive", func(t *testing.T) {
		ctx := context.Background()
		var (
			wg     sync.WaitGroup
			inside int32
			failed atomic.Bool
		)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := locker.Lock(ctx, "contract-exclusive", 5*time.Second)
				if err != nil {
					failed.Store(true)
					return
				}
				if atomic.AddInt32(&inside, 1) > 1 {
					failed.Store(true)
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				_ = unlock(ctx)
			}()
		}
		wg.Wait()
		if failed.Load() {
			t.Error("lock was held by more than one holder or could not be acquired")
		}
	})
}
