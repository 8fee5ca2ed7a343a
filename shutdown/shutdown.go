// Package shutdown runs cleanup hooks when an export is interrupted.
package shutdown

import (
	"container/heap"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/flanksource/commons/logger"
)

const (
	// PriorityRenders stops in-flight renders before files are touched.
	PriorityRenders  = 0
	PriorityDefault  = 100
	PriorityOutput   = 200
	PriorityTempDirs = 300
)

type Hook struct {
	label    string
	priority int
	fn       func()
	index    int
}

type HookHeap []*Hook

func (h HookHeap) Len() int           { return len(h) }
func (h HookHeap) Less(i, j int) bool { return h[i].priority < h[j].priority }
func (h HookHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *HookHeap) Push(x any) {
	item := x.(*Hook)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *HookHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

var (
	hooks    HookHeap
	hooksMux sync.Mutex
)

// AddHook registers a hook with default priority and returns a function
// that unregisters it, for cleanups that are no longer needed once the
// work they guard has finished.
func AddHook(label string, fn func()) (remove func()) {
	return AddHookWithPriority(label, PriorityDefault, fn)
}

func AddHookWithPriority(label string, priority int, fn func()) (remove func()) {
	hooksMux.Lock()
	defer hooksMux.Unlock()

	hook := &Hook{label: label, priority: priority, fn: fn}
	heap.Push(&hooks, hook)
	return func() {
		hooksMux.Lock()
		defer hooksMux.Unlock()
		if hook.index >= 0 && hook.index < len(hooks) && hooks[hook.index] == hook {
			heap.Remove(&hooks, hook.index)
		}
	}
}

// Pending returns the number of registered hooks.
func Pending() int {
	hooksMux.Lock()
	defer hooksMux.Unlock()
	return len(hooks)
}

// Shutdown runs every registered hook once, lowest priority first. A
// panicking hook is logged and does not stop the others.
func Shutdown() {
	hooksMux.Lock()
	defer hooksMux.Unlock()

	if len(hooks) == 0 {
		return
	}
	logger.Debugf("Executing %d shutdown hooks", len(hooks))
	for hooks.Len() > 0 {
		hook := heap.Pop(&hooks).(*Hook)
		logger.Debugf("Executing shutdown hook: %s (priority=%d)", hook.label, hook.priority)
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("Panic in shutdown hook %s: %v", hook.label, r)
				}
			}()
			hook.fn()
		}()
	}
}

// WithSignals returns a context that is cancelled on SIGINT or SIGTERM.
// The first signal cancels the context and runs the hooks; a second one
// exits immediately. The returned stop function releases the signal
// handler.
func WithSignals(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigChan:
			fmt.Fprintf(os.Stderr, "\nReceived %s, stopping export...\n", sig)
			fmt.Fprintf(os.Stderr, "   Press Ctrl+C again to force immediate exit\n\n")
			go func() {
				select {
				case <-sigChan:
					fmt.Fprintf(os.Stderr, "\nForce exit\n")
					os.Exit(1)
				case <-done:
				}
			}()
			cancel()
			Shutdown()
		case <-done:
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			signal.Stop(sigChan)
			close(done)
			cancel()
		})
	}
}
