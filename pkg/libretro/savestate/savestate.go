// Package savestate writes and reads core memory snapshots.
//
// A slot lives at <dir>/<library>/<rom>/<slot>.save, it is written
// into a temporary file first and then renamed over the old one.
package savestate

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/retrohost/retrohost/pkg/libretro"
	"github.com/retrohost/retrohost/pkg/os"
)

const (
	Ext        = "save"
	PreviewExt = "png"
	RamExt     = "srm"
)

type SaveInfo struct {
	Dir     string
	Library string
	Rom     string
	Slot    int
	// the size of the core serialization buffer
	Size int
}

func (s SaveInfo) Validate() error {
	if s.Dir == "" {
		return fmt.Errorf("%w: no save dir", libretro.ErrValidation)
	}
	if err := libretro.ValidateName(s.Library); err != nil {
		return err
	}
	if err := libretro.ValidateName(s.Rom); err != nil {
		return err
	}
	if err := libretro.ValidateSlot(s.Slot); err != nil {
		return err
	}
	return libretro.ValidateBufferSize(s.Size, libretro.MaxSaveStateSize)
}

// Folder is the directory of all the slots of a game.
func (s SaveInfo) Folder() string {
	return filepath.Join(s.Dir, libretro.SanitizeName(s.Library), libretro.SanitizeName(s.Rom))
}

func (s SaveInfo) Path() string        { return s.file(Ext) }
func (s SaveInfo) PreviewPath() string { return s.file(PreviewExt) }
func (s SaveInfo) file(ext string) string {
	return filepath.Join(s.Folder(), fmt.Sprintf("%02d.%s", s.Slot, ext))
}

// RamPath is the battery save file of the game.
func (s SaveInfo) RamPath() string {
	return filepath.Join(s.Folder(), libretro.SanitizeName(s.Rom)+"."+RamExt)
}

// Key is the slot path relative to the save dir, with forward slashes.
func (s SaveInfo) Key() string {
	rel, err := filepath.Rel(s.Dir, s.Path())
	if err != nil {
		return filepath.Base(s.Path())
	}
	return filepath.ToSlash(rel)
}

// Save asks the core to serialize into a zeroed buffer of info.Size bytes
// and writes it into the slot file.
func Save(info SaveInfo, serialize func([]byte) bool) (err error) {
	if err = info.Validate(); err != nil {
		return err
	}
	buf := make([]byte, info.Size)
	if !serialize(buf) {
		return fmt.Errorf("%w: serialize of %v bytes", libretro.ErrPluginRejected, info.Size)
	}

	unlock, err := lock(info.Folder(), false)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, unlock()) }()

	path := info.Path()
	if err = os.WriteFileAtomic(path, buf, 0644); err != nil {
		return fmt.Errorf("%w: %w", libretro.ErrResourceUnavailable, err)
	}
	size, err := os.FileSize(path)
	if err != nil {
		return fmt.Errorf("%w: %w", libretro.ErrResourceUnavailable, err)
	}
	if size != int64(len(buf)) {
		return fmt.Errorf("%w: written %v of %v bytes", libretro.ErrResourceUnavailable, size, len(buf))
	}
	return nil
}

// Load reads the slot file into a buffer of info.Size bytes.
// Smaller files are padded with zeroes, bigger ones are rejected.
func Load(info SaveInfo, unserialize func([]byte) bool) (err error) {
	if err = info.Validate(); err != nil {
		return err
	}
	if !os.Exists(info.Path()) {
		return fmt.Errorf("%w: no save in slot %v: %w", libretro.ErrResourceUnavailable, info.Slot, os.ErrNotExist)
	}

	unlock, err := lock(info.Folder(), true)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, unlock()) }()

	buf, err := readInto(info.Path(), info.Size)
	if err != nil {
		return err
	}
	if !unserialize(buf) {
		return fmt.Errorf("%w: unserialize of %v bytes", libretro.ErrPluginRejected, len(buf))
	}
	return nil
}

// SaveRam writes the battery memory of the game.
func SaveRam(info SaveInfo, mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	if err := os.WriteFileAtomic(info.RamPath(), mem, 0644); err != nil {
		return fmt.Errorf("%w: %w", libretro.ErrResourceUnavailable, err)
	}
	return nil
}

// LoadRam copies a saved battery memory into mem, missing files are fine.
func LoadRam(info SaveInfo, mem []byte) error {
	if len(mem) == 0 || !os.Exists(info.RamPath()) {
		return nil
	}
	buf, err := readInto(info.RamPath(), len(mem))
	if err != nil {
		return err
	}
	copy(mem, buf)
	return nil
}

func readInto(path string, size int) ([]byte, error) {
	fileSize, err := os.FileSize(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", libretro.ErrResourceUnavailable, err)
	}
	if fileSize == 0 {
		return nil, fmt.Errorf("%w: empty file %v", libretro.ErrValidation, path)
	}
	if fileSize > int64(size) {
		return nil, fmt.Errorf("%w: %v has %v bytes, more than %v the core takes",
			libretro.ErrValidation, path, fileSize, size)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", libretro.ErrResourceUnavailable, err)
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, size)
	if _, err = io.ReadFull(f, buf[:fileSize]); err != nil {
		return nil, fmt.Errorf("%w: %w", libretro.ErrResourceUnavailable, err)
	}
	return buf, nil
}

func lock(dir string, shared bool) (func() error, error) {
	if err := os.CheckCreateDir(dir); err != nil {
		return nil, fmt.Errorf("%w: %w", libretro.ErrResourceUnavailable, err)
	}
	l, err := os.DirLock(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", libretro.ErrResourceUnavailable, err)
	}
	if shared {
		err = l.RLock()
	} else {
		err = l.Lock()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: lock: %w", libretro.ErrResourceUnavailable, err)
	}
	return l.Unlock, nil
}
