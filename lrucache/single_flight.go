/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package lrucache

import (
	"bytes"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

// ErrGoexit is returned when a goroutine calls runtime.Goexit.
var ErrGoexit = errors.New("runtime.Goexit was called")

// PanicError is an error that represents a panic value and stack trace.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("%v\n\n%s", p.Value, p.Stack)
}

// Unwrap returns the panic value if it was an error, nil otherwise.
func (p *PanicError) Unwrap() error {
	err, ok := p.Value.(error)
	if !ok {
		return nil
	}
	return err
}

func newPanicError(v interface{}) error {
	stack := debug.Stack()

	// The first line of the stack trace is of the form "goroutine N [status]:"
	// but by the time the panic reaches Do the goroutine may no longer exist
	// and its status will have changed. Trim out the misleading line.
	if line := bytes.IndexByte(stack, '\n'); line >= 0 {
		stack = stack[line+1:]
	}
	return &PanicError{Value: v, Stack: stack}
}

type inFlightCall[V any] struct {
	wg  sync.WaitGroup
	val V
	err error
}

// singleFlightGroup collapses concurrent calls for the same key into one:
// the first caller runs fn, the rest wait and share its result.
// LRUCache uses it so that a missing entry is provided only once.
// The zero value is ready to use.
type singleFlightGroup[K comparable, V any] struct {
	mu    sync.Mutex
	calls map[K]*inFlightCall[V]
}

func (g *singleFlightGroup[K, V]) Do(key K, fn func() (V, error)) (V, error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[K]*inFlightCall[V])
	}
	if call, ok := g.calls[key]; ok {
		g.mu.Unlock()
		call.wg.Wait()
		return call.val, call.err
	}
	call := &inFlightCall[V]{}
	call.wg.Add(1)
	g.calls[key] = call
	g.mu.Unlock()

	return g.run(call, key, fn)
}

func (g *singleFlightGroup[K, V]) run(call *inFlightCall[V], key K, fn func() (V, error)) (val V, err error) {
	normalReturn := false
	recovered := false

	// double-defer to distinguish panic from runtime.Goexit
	defer func() {
		if !normalReturn && !recovered {
			call.err = ErrGoexit
		}

		call.wg.Done()

		g.mu.Lock()
		delete(g.calls, key)
		g.mu.Unlock()

		if recovered {
			panic(call.err.(*PanicError).Value) // re-panic on the same goroutine
		}

		val, err = call.val, call.err
	}()

	defer func() {
		if !normalReturn {
			if v := recover(); v != nil {
				call.err = newPanicError(v)
				recovered = true
			}
		}
	}()
	call.val, call.err = fn()
	normalReturn = true

	return call.val, call.err // will be set in the defer
}
