//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// Hotkey registration and the tray event loop must run on the main thread
// on macOS and Windows.
func main() {
	mainthread.Init(run)
}

func callOnMain(fn func()) {
	mainthread.Call(fn)
}
