// Package signals runs registered shutdown handlers when the process is
// interrupted.
package signals

import (
	"os"
	"os/signal"
	"sync"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// sigChan is buffered so a signal arriving before Handle runs is kept.
var sigChan = make(chan os.Signal, 1)

// Handler is a function called when a shutdown signal is received.
type Handler func()

// HandlerID identifies a registered handler.
type HandlerID int

type registeredHandler struct {
	id HandlerID
	fn Handler
}

var (
	mu           sync.RWMutex
	interrupters []registeredHandler
	nextID       HandlerID
	stopOnce     sync.Once
)

// RegisterInterruptHandler registers f to run on SIGINT or SIGTERM. Nil
// handlers are ignored and return -1.
func RegisterInterruptHandler(f Handler) HandlerID {
	if f == nil {
		return -1
	}
	mu.Lock()
	defer mu.Unlock()
	id := nextID
	nextID++
	interrupters = append(interrupters, registeredHandler{id: id, fn: f})
	return id
}

// DeregisterInterruptHandler removes the handler registered as id.
func DeregisterInterruptHandler(id HandlerID) {
	mu.Lock()
	defer mu.Unlock()
	for i, h := range interrupters {
		if h.id == id {
			interrupters = append(interrupters[:i], interrupters[i+1:]...)
			return
		}
	}
}

// handleInterrupted runs the handlers in registration order. A panicking
// handler is logged and the rest still run.
func handleInterrupted(sig os.Signal) {
	mu.RLock()
	snapshot := make([]registeredHandler, len(interrupters))
	copy(snapshot, interrupters)
	mu.RUnlock()

	log.WithFields(logger.Fields{
		"at":       "handleInterrupted",
		"signal":   sig.String(),
		"handlers": len(snapshot),
	}).Info("shutdown_signal_received")

	for _, h := range snapshot {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(logger.Fields{
						"at":      "handleInterrupted",
						"handler": int(h.id),
						"panic":   r,
					}).Error("interrupt_handler_panicked")
				}
			}()
			h.fn()
		}()
	}
}

// Handle dispatches signals until StopHandle is called.
func Handle() {
	for sig := range sigChan {
		if isShutdown(sig) {
			handleInterrupted(sig)
		}
	}
}

// StopHandle stops signal delivery and makes Handle return. Only the first
// call has an effect.
func StopHandle() {
	stopOnce.Do(func() {
		signal.Stop(sigChan)
		close(sigChan)
	})
}
