package recorder

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const bufferSize = 4096

// file is a buffered output file of a stream.
type file struct {
	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

func newFile(dir, name string) (*file, error) {
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	return &file{f: f, w: bufio.NewWriterSize(f, bufferSize)}, nil
}

func (f *file) Write(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.w.Write(data)
	if err != nil && n < len(data) {
		return fmt.Errorf("write size mismatch [%v!=%v], %w", n, len(data), err)
	}
	return err
}

func (f *file) WriteString(s string) error { return f.Write([]byte(s)) }

func (f *file) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.w.Flush()
}

// Size is the size of the flushed data.
func (f *file) Size() (int64, error) {
	inf, err := f.f.Stat()
	if err != nil {
		return -1, err
	}
	return inf.Size(), nil
}

// WriteAt writes into the file bypassing the buffer.
func (f *file) WriteAt(data []byte, off int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.f.WriteAt(data, off)
	return err
}

func (f *file) Close() error { return f.f.Close() }
