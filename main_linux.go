//go:build linux

package main

func main() {
	run()
}

// callOnMain runs fn directly; the Linux tray and hotkey have no thread affinity.
func callOnMain(fn func()) {
	fn()
}
