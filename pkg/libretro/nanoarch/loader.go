package nanoarch

/*
#cgo LDFLAGS: -ldl
#include <stdlib.h>
#include <dlfcn.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	"github.com/retrohost/retrohost/pkg/libretro"
)

func loadFunction(handle unsafe.Pointer, name string) (unsafe.Pointer, error) {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	ptr := C.dlsym(handle, cs)
	if ptr == nil {
		return nil, fmt.Errorf("%w: no %v in the core", libretro.ErrResourceUnavailable, name)
	}
	return ptr, nil
}

func loadLib(path string) (unsafe.Pointer, error) {
	if handle := open(path); handle != nil {
		return handle, nil
	}
	if e := C.dlerror(); e != nil {
		return nil, errors.New(C.GoString(e))
	}
	return nil, errors.New("couldn't load the lib")
}

// loadLibRolling opens the first file in the lib folder which name
// starts with the lib name, e.g. versioned core.so.1.
func loadLibRolling(path string) (unsafe.Pointer, error) {
	dir, lib := filepath.Dir(path), filepath.Base(path)
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("couldn't find 'n load the lib: %w", err)
	}
	for _, file := range files {
		if !file.IsDir() && strings.HasPrefix(file.Name(), lib) {
			if handle := open(filepath.Join(dir, file.Name())); handle != nil {
				return handle, nil
			}
		}
	}
	return nil, errors.New("couldn't find 'n load the lib")
}

func open(file string) unsafe.Pointer {
	cs := C.CString(file)
	defer C.free(unsafe.Pointer(cs))
	return C.dlopen(cs, C.RTLD_LAZY|C.RTLD_LOCAL)
}

func closeLib(handle unsafe.Pointer) error {
	if handle == nil {
		return nil
	}
	if code := int(C.dlclose(handle)); code != 0 {
		return fmt.Errorf("couldn't close the lib (%v)", code)
	}
	return nil
}
