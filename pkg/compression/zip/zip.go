// Package zip packs save files and unpacks archived ROMs.
package zip

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/retrohost/retrohost/pkg/logger"
)

const Ext = ".zip"

var (
	ErrorNotFound    = errors.New("not found")
	ErrorInvalidName = errors.New("invalid name")
)

// Compress compresses the bytes (a single file) with a name specified into a ZIP file (as bytes).
func Compress(data []byte, name string) ([]byte, error) {
	if name == "" || name == "." {
		return nil, ErrorInvalidName
	}
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	z, err := w.Create(name)
	if err != nil {
		return nil, err
	}
	if _, err = z.Write(data); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Read reads a single ZIP file from the bytes array.
// It will return un-compressed data and the name of that file.
func Read(zd []byte) ([]byte, string, error) {
	r, err := zip.NewReader(bytes.NewReader(zd), int64(len(zd)))
	if err != nil {
		return nil, "", err
	}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		b, err := readFile(f)
		if err != nil {
			return nil, "", err
		}
		return b, f.FileInfo().Name(), nil
	}
	return nil, "", ErrorNotFound
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

type Extractor struct {
	log *logger.Logger
}

func New(log *logger.Logger) Extractor { return Extractor{log: log} }

// Extract unpacks the files of the archive with one of the extensions
// (a|b|c, all when empty) into dest. Paths leaving dest are skipped.
func (e Extractor) Extract(src, dest, extensions string) (files []string, err error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	exts := strings.Split(strings.ToLower(extensions), "|")
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !matches(f.Name, exts) {
			continue
		}
		path := filepath.Join(dest, f.Name)
		// negate ZipSlip vulnerability (http://bit.ly/2MsjAWE)
		if !strings.HasPrefix(path, filepath.Clean(dest)+string(os.PathSeparator)) {
			e.log.Warn().Msgf("%s is illegal path", f.Name)
			continue
		}
		if err := extractFile(f, path); err != nil {
			e.log.Error().Err(err).Msgf("extract %v", f.Name)
			continue
		}
		files = append(files, path)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files in %v", ErrorNotFound, src)
	}
	return files, nil
}

func extractFile(f *zip.File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		_ = out.Close()
		return err
	}
	_, err = io.Copy(out, rc)
	_ = rc.Close()
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}

func matches(name string, exts []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	for _, e := range exts {
		if e == "" || e == ext {
			return true
		}
	}
	return false
}
