package doctor

import (
	"fmt"
	"os"
	"os/signal"

	"golang.org/x/term"
)

var saved *term.State

// resetTerminal restores the mode stdin had when the doctor started. Grabbing
// keyboard devices can leave the terminal in raw mode.
func resetTerminal() {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return
	}
	if saved == nil {
		saved, _ = term.GetState(fd)
		return
	}
	term.Restore(fd, saved)
}

func setupInterruptHandler() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		resetTerminal()
		fmt.Fprintln(os.Stderr, "\nInterrupted")
		os.Exit(1)
	}()
}
