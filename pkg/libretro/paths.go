package libretro

import (
	"fmt"
	"path/filepath"

	"github.com/retrohost/retrohost/pkg/os"
)

// PathSet holds the directories given to a core. It doesn't change after creation.
type PathSet struct {
	system string
	save   string
	assets string
}

// NewPathSet validates and makes absolute paths, the directories are created
// when missing.
func NewPathSet(system, save, assets string) (PathSet, error) {
	var ps PathSet
	for _, p := range []struct {
		dst *string
		src string
	}{{&ps.system, system}, {&ps.save, save}, {&ps.assets, assets}} {
		if err := ValidatePath(p.src); err != nil {
			return PathSet{}, err
		}
		abs, err := filepath.Abs(p.src)
		if err != nil {
			return PathSet{}, validationErr("path %v: %v", p.src, err)
		}
		if err := os.CheckCreateDir(abs); err != nil {
			return PathSet{}, fmt.Errorf("%w: %w", ErrResourceUnavailable, err)
		}
		*p.dst = abs
	}
	return ps, nil
}

func (p PathSet) System() string { return p.system }
func (p PathSet) Save() string   { return p.save }
func (p PathSet) Assets() string { return p.assets }
