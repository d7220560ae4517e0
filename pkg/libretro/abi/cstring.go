package abi

import (
	"runtime"
	"sync"
	"unsafe"
)

// GoString copies a NUL-terminated C string.
// Strings longer than MaxCStringLen are cut.
func GoString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for n < MaxCStringLen && *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}

// CStrings keeps NUL-terminated copies of Go strings at fixed addresses
// so cores may hold on to them after the callback returns.
// Each distinct string is allocated once.
type CStrings struct {
	mu     sync.Mutex
	pinner runtime.Pinner
	m      map[string]*byte
}

func (c *CStrings) Get(s string) *byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.m[s]; ok {
		return p
	}
	if c.m == nil {
		c.m = make(map[string]*byte)
	}
	b := make([]byte, len(s)+1)
	copy(b, s)
	p := &b[0]
	c.pinner.Pin(p)
	c.m[s] = p
	return p
}

// Release unpins every string. Pointers given out before are invalid after.
func (c *CStrings) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinner.Unpin()
	c.m = nil
}

// Bytes makes a NUL-terminated string in Go memory.
func Bytes(s string) *byte {
	b := append([]byte(s), 0)
	return &b[0]
}
