package libretro

import (
	"path/filepath"
	"strings"
)

const (
	MaxPathLen       = 4096
	MaxRomSize       = 500 << 20
	MaxSaveStateSize = 100 << 20
	MinSampleRate    = 8000
	MaxSampleRate    = 192000
	MaxSlot          = 99
	MaxPort          = 7
)

var traversal = []string{"..", "//", `\\`, "/."}

const unsafeNameChars = `/\:*?"<>|` + "\x00"

func ValidatePath(path string) error {
	switch {
	case path == "":
		return validationErr("empty path")
	case strings.IndexByte(path, 0) >= 0:
		return validationErr("path contains NUL")
	case len(path) > MaxPathLen:
		return validationErr("path is longer than %v", MaxPathLen)
	}
	for _, p := range traversal {
		if strings.Contains(path, p) {
			return validationErr("path %q contains %q", path, p)
		}
	}
	return nil
}

// ValidateRomExtension checks the file extension against a list like "nes|fds".
// An empty list allows everything.
func ValidateRomExtension(path string, extensions string) error {
	if extensions == "" {
		return nil
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return validationErr("%q has no extension, expected one of %v", path, extensions)
	}
	for _, e := range strings.Split(extensions, "|") {
		if strings.EqualFold(strings.TrimSpace(e), ext) {
			return nil
		}
	}
	return validationErr("extension %q is not one of %v", ext, extensions)
}

func ValidateRomSize(size int64) error {
	if size <= 0 {
		return validationErr("empty file")
	}
	if size > MaxRomSize {
		return validationErr("file size %v exceeds %v", size, MaxRomSize)
	}
	return nil
}

func ValidateSampleRate(rate float64) error {
	if rate < MinSampleRate || rate > MaxSampleRate {
		return validationErr("sample rate %v is out of [%v, %v]", rate, MinSampleRate, MaxSampleRate)
	}
	return nil
}

func ValidateSlot(slot int) error {
	if slot < 0 || slot > MaxSlot {
		return validationErr("slot %v is out of [0, %v]", slot, MaxSlot)
	}
	return nil
}

func ValidatePort(port uint) error {
	if port > MaxPort {
		return validationErr("port %v is out of [0, %v]", port, MaxPort)
	}
	return nil
}

// ValidateBufferSize checks 0 < size <= max.
func ValidateBufferSize(size, max int) error {
	if size <= 0 {
		return validationErr("zero buffer size")
	}
	if size > max {
		return validationErr("buffer size %v exceeds %v", size, max)
	}
	return nil
}

// ValidateName rejects names which can't be used as a file name.
func ValidateName(name string) error {
	if name == "" {
		return validationErr("empty name")
	}
	if strings.ContainsAny(name, unsafeNameChars) {
		return validationErr("name %q has forbidden characters", name)
	}
	return nil
}

// SanitizeName replaces the characters not allowed in file names with _.
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(unsafeNameChars, r) || r < 0x20 {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
}

// RomName is the file name of a ROM without the extension.
func RomName(path string) string {
	base := filepath.Base(path)
	return SanitizeName(strings.TrimSuffix(base, filepath.Ext(base)))
}
