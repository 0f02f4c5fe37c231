/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package lrucache

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSingleFlightGroup(t *testing.T) {
	t.Run("concurrent calls share one result", func(t *testing.T) {
		var group singleFlightGroup[string, int]
		var calls int32

		const numCallers = 10
		vals := make(chan int, numCallers)
		var wg sync.WaitGroup
		wg.Add(numCallers)
		for i := 0; i < numCallers; i++ {
			go func() {
				defer wg.Done()
				val, err := group.Do("tenant-1", func() (int, error) {
					atomic.AddInt32(&calls, 1)
					time.Sleep(100 * time.Millisecond)
					return 42, nil
				})
				require.NoError(t, err)
				vals <- val
			}()
		}
		wg.Wait()
		close(vals)

		require.Equal(t, int32(1), atomic.LoadInt32(&calls), "only one caller should run fn")
		for val := range vals {
			require.Equal(t, 42, val)
		}
	})

	t.Run("panic", func(t *testing.T) {
		var group singleFlightGroup[string, int]
		var calls int32

		provideAndPanic := func() (int, error) {
			atomic.AddInt32(&calls, 1)
			time.Sleep(100 * time.Millisecond)
			panic("provider exploded")
		}

		const numCallers = 10
		errs := make(chan error, numCallers)
		repanics := make(chan struct{}, numCallers)
		var wg sync.WaitGroup
		wg.Add(numCallers)
		for i := 0; i < numCallers; i++ {
			go func() {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						repanics <- struct{}{}
					}
				}()
				_, err := group.Do("tenant-1", provideAndPanic)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		close(repanics)

		require.Equal(t, int32(1), atomic.LoadInt32(&calls), "only one caller should run fn")

		// The owner of the call re-panics, every waiter receives a PanicError instead.
		require.Len(t, repanics, 1, "exactly one goroutine should re-panic")
		require.Len(t, errs, numCallers-1)
		for err := range errs {
			var panicErr *PanicError
			require.ErrorAs(t, err, &panicErr)
			require.Equal(t, "provider exploded", panicErr.Value)
			require.NotEmpty(t, panicErr.Stack, "stack trace should be captured")
		}
	})

	t.Run("runtime.Goexit", func(t *testing.T) {
		var group singleFlightGroup[string, int]
		var calls int32

		exitInsteadOfReturning := func() (int, error) {
			atomic.AddInt32(&calls, 1)
			time.Sleep(100 * time.Millisecond)
			runtime.Goexit()
			return 42, nil
		}

		const numCallers = 10
		errs := make(chan error, numCallers)
		var wg sync.WaitGroup
		wg.Add(numCallers)
		for i := 0; i < numCallers; i++ {
			go func() {
				defer wg.Done()
				_, err := group.Do("tenant-1", exitInsteadOfReturning)
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		require.Equal(t, int32(1), atomic.LoadInt32(&calls), "only one caller should run fn")

		// The goroutine that owned the call exited, the rest observe ErrGoexit.
		require.Len(t, errs, numCallers-1)
		for err := range errs {
			require.ErrorIs(t, err, ErrGoexit)
		}
	})

	t.Run("flight is forgotten after completion", func(t *testing.T) {
		var group singleFlightGroup[string, int]
		var calls int32

		for i := 0; i < 3; i++ {
			val, err := group.Do("tenant-1", func() (int, error) {
				return int(atomic.AddInt32(&calls, 1)), nil
			})
			require.NoError(t, err)
			require.Equal(t, i+1, val, "sequential calls must each run fn anew")
		}
	})
}
