//go:build windows

package signals

import (
	"os"
	"os/signal"
)

func init() {
	signal.Notify(sigChan, os.Interrupt)
}

func isShutdown(sig os.Signal) bool {
	return sig == os.Interrupt
}
