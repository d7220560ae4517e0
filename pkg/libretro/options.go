package libretro

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/retrohost/retrohost/pkg/os"
)

const OptionsExt = "opt"

type OptionDef struct {
	Key      string
	Desc     string
	Info     string
	Category string
	Values   []string
	Default  string
	Visible  bool
}

// OptionStore keeps the core options of a session.
// The update counter tells the core to re-read its variables.
type OptionStore struct {
	mu        sync.RWMutex
	defs      map[string]*OptionDef
	order     []string
	values    map[string]string
	overrides map[string]string
	updated   atomic.Uint32
}

// NewOptionStore makes a store, overrides take priority over
// the saved and default values.
func NewOptionStore(overrides map[string]string) *OptionStore {
	return &OptionStore{
		defs:      make(map[string]*OptionDef),
		values:    make(map[string]string),
		overrides: maps.Clone(overrides),
	}
}

// Define replaces all option definitions.
func (s *OptionStore) Define(defs []OptionDef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs = make(map[string]*OptionDef, len(defs))
	s.order = s.order[:0]
	for i := range defs {
		d := defs[i]
		if d.Key == "" {
			continue
		}
		if d.Default == "" && len(d.Values) > 0 {
			d.Default = d.Values[0]
		}
		s.defs[d.Key] = &d
		s.order = append(s.order, d.Key)

		v, ok := s.overrides[d.Key]
		if !ok || !d.allows(v) {
			v, ok = s.values[d.Key]
		}
		if !ok || !d.allows(v) {
			v = d.Default
		}
		s.values[d.Key] = v
	}
	s.updated.Add(1)
}

func (d *OptionDef) allows(v string) bool {
	return len(d.Values) == 0 || slices.Contains(d.Values, v)
}

func (s *OptionStore) Definitions() []OptionDef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]OptionDef, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, *s.defs[k])
	}
	return out
}

func (s *OptionStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set changes the value of an option, the value should be one
// of the declared ones if the core declared any.
func (s *OptionStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.defs[key]; ok && !d.allows(value) {
		return validationErr("%q is not a value of %v", value, key)
	}
	if s.values[key] == value {
		return nil
	}
	s.values[key] = value
	s.updated.Add(1)
	return nil
}

// SetVisible toggles option visibility, false if there is no such option.
func (s *OptionStore) SetVisible(key string, visible bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.defs[key]
	if ok {
		d.Visible = visible
	}
	return ok
}

func (s *OptionStore) Visible(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.defs[key]
	return ok && d.Visible
}

// ConsumeUpdated reports whether anything changed since the last call.
func (s *OptionStore) ConsumeUpdated() bool { return s.updated.Swap(0) > 0 }

func (s *OptionStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Load reads option values from a file with `key = "value"` lines.
// A missing file is not an error.
func (s *OptionStore) Load(path string) error {
	_, err := s.Reload(path)
	return err
}

// Reload is Load which also tells if any value changed.
// Keys with a config override keep the override.
func (s *OptionStore) Reload(path string) (changed bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrResourceUnavailable, err)
	}
	kv, err := parseOptions(data)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range kv {
		d, defined := s.defs[k]
		if defined && !d.allows(v) {
			continue
		}
		// the config wins over the file as it does in Define
		if o, ok := s.overrides[k]; ok && (!defined || d.allows(o)) {
			continue
		}
		if old, ok := s.values[k]; ok && old == v {
			continue
		}
		s.values[k] = v
		changed = true
	}
	if changed {
		s.updated.Add(1)
	}
	return changed, nil
}

// Save writes the current values into a file under a lock.
func (s *OptionStore) Save(path string) (err error) {
	values := s.Snapshot()
	keys := slices.Sorted(maps.Keys(values))

	var buf bytes.Buffer
	for _, k := range keys {
		buf.WriteString(k + " = " + strconv.Quote(values[k]) + "\n")
	}

	dir := filepath.Dir(path)
	if err = os.CheckCreateDir(dir); err != nil {
		return fmt.Errorf("%w: %w", ErrResourceUnavailable, err)
	}
	lock, err := os.DirLock(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrResourceUnavailable, err)
	}
	if err = lock.Lock(); err != nil {
		return fmt.Errorf("%w: %w", ErrResourceUnavailable, err)
	}
	defer func() { err = errors.Join(err, lock.Unlock()) }()

	if err = os.WriteFileAtomic(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("%w: %w", ErrResourceUnavailable, err)
	}
	return nil
}

func parseOptions(data []byte) (map[string]string, error) {
	kv := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		l := strings.TrimSpace(sc.Text())
		if l == "" || l[0] == '#' {
			continue
		}
		k, v, ok := strings.Cut(l, "=")
		if !ok {
			return nil, validationErr("options line %v: no =", line)
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if uq, err := strconv.Unquote(v); err == nil {
			v = uq
		} else {
			v = strings.Trim(v, `"`)
		}
		if k == "" || len(k) > 255 {
			return nil, validationErr("options line %v: bad key", line)
		}
		kv[k] = v
	}
	return kv, sc.Err()
}
