package upload

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/yungbote/component-registry/internal/platform/apperr"
)

var scriptExtensions = map[string]bool{
	".js":  true,
	".mjs": true,
	".cjs": true,
}

// Archive is a parsed upload package. Entry names are normalized to forward
// slashes without a leading "./".
type Archive struct {
	files     map[string]*zip.File
	names     []string
	totalSize int64
}

// OpenArchive parses the package bytes. The uncompressed total size is checked
// against maxBytes (0 disables the check) and a violation is fatal.
func OpenArchive(data []byte, maxBytes int64) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperr.Validation("archive_malformed", "package is not a valid zip archive: %v", err)
	}

	a := &Archive{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := normalizeEntryName(f.Name)
		if name == "" {
			continue
		}
		a.files[name] = f
		a.names = append(a.names, name)
		a.totalSize += int64(f.UncompressedSize64)
	}

	if maxBytes > 0 && a.totalSize > maxBytes {
		return nil, apperr.Validation("archive_too_large", "package unpacks to %d bytes, limit is %d", a.totalSize, maxBytes)
	}
	return a, nil
}

func normalizeEntryName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	return path.Clean(name)
}

func (a *Archive) FileCount() int { return len(a.names) }

func (a *Archive) TotalSize() int64 { return a.totalSize }

func (a *Archive) Names() []string { return a.names }

// FindDocument locates a well-known document at the archive root or inside a
// first-level directory (build tools often wrap the output in one folder).
func (a *Archive) FindDocument(fileName string) (string, bool) {
	if _, ok := a.files[fileName]; ok {
		return fileName, true
	}
	for name := range a.files {
		parts := strings.Split(name, "/")
		if len(parts) == 2 && parts[1] == fileName {
			return name, true
		}
	}
	return "", false
}

// ReadFile returns the uncompressed contents of an entry.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	f, ok := a.files[name]
	if !ok {
		return nil, apperr.NotFound("archive_entry_missing", "entry %q not found in package", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, apperr.Infra("archive_read_failed", err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, apperr.Infra("archive_read_failed", err)
	}
	return raw, nil
}

// Resolve finds a declared file path in the archive, tolerating one wrapping
// root directory via suffix match. Returns the actual entry name.
func (a *Archive) Resolve(declared string) (string, bool) {
	declared = normalizeEntryName(declared)
	if _, ok := a.files[declared]; ok {
		return declared, true
	}
	suffix := "/" + declared
	for name := range a.files {
		if strings.HasSuffix(name, suffix) {
			return name, true
		}
	}
	return "", false
}

// HasScriptAsset reports whether the package carries at least one script file.
func (a *Archive) HasScriptAsset() bool {
	for name := range a.files {
		if scriptExtensions[strings.ToLower(path.Ext(name))] {
			return true
		}
	}
	return false
}
