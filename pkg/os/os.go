package os

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
)

var ErrNotExist = os.ErrNotExist

func Exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

func CheckCreateDir(path string) error {
	if !Exists(path) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

// FileSize returns the size of a regular file.
func FileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !fi.Mode().IsRegular() {
		return 0, fmt.Errorf("not a regular file: %v", path)
	}
	return fi.Size(), nil
}

func ExpectTermination() chan struct{} {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{}, 1)
	go func() {
		<-signals
		done <- struct{}{}
	}()
	return done
}

func UserHome() (string, error) { return os.UserHomeDir() }

func Exit(code int) { os.Exit(code) }

func ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

func RemoveAll(path string) error { return os.RemoveAll(path) }

func Open(name string) (*os.File, error) { return os.Open(name) }

// WriteFileAtomic writes data next to the target as name.tmp and
// renames it over the target. The temporary file is removed on failure.
func WriteFileAtomic(name string, data []byte, perm os.FileMode) error {
	if err := CheckCreateDir(filepath.Dir(name)); err != nil {
		return err
	}
	tmp := name + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, name); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
