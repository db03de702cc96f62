// Package clipboard reads and writes the system clipboard and synthesizes
// paste chords and typed text.
package clipboard

import (
	"time"

	cb "github.com/atotto/clipboard"
)

func Read() (string, error) {
	return cb.ReadAll()
}

func Write(text string) error {
	return cb.WriteAll(text)
}

// System is the real clipboard and keyboard.
type System struct{}

func (System) Read() (string, error)                       { return Read() }
func (System) Write(text string) error                     { return Write(text) }
func (System) Paste(hold time.Duration) error              { return Paste(hold) }
func (System) Type(text string, delay time.Duration) error { return Type(text, delay) }
