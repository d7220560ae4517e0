//go:build !linux

package thread

/*
#include <pthread.h>
#include <stdint.h>

static uintptr_t thread_id(void) { return (uintptr_t) pthread_self(); }
*/
import "C"

// Id is the id of the current OS thread.
// It is stable only for goroutines locked to their thread.
func Id() uintptr { return uintptr(C.thread_id()) }
