package thread

import "golang.org/x/sys/unix"

// Id is the id of the current OS thread.
// It is stable only for goroutines locked to their thread.
func Id() uintptr { return uintptr(unix.Gettid()) }
