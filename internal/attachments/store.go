// Package attachments stores transaction files on the local filesystem.
package attachments

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"fintrack/internal/core"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxBytes is the upload ceiling when none is configured.
const DefaultMaxBytes = 10 << 20

const timestampLayout = "20060102_150405"

var allowedExtensions = map[string]bool{
	"pdf": true, "png": true, "jpg": true, "jpeg": true, "gif": true, "bmp": true,
	"doc": true, "docx": true, "xls": true, "xlsx": true, "txt": true,
}

// Allowed reports whether filename has an accepted extension.
func Allowed(filename string) bool {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	return allowedExtensions[strings.ToLower(ext)]
}

// Store keeps attachments in a single flat directory.
type Store struct {
	dir      string
	maxBytes int64
	now      func() time.Time
}

func NewStore(dir string, maxBytes int64) (*Store, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes, now: time.Now}, nil
}

// MaxBytes is the largest accepted payload.
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save writes r under a fresh storage key derived from filename.
func (s *Store) Save(filename string, r io.Reader) (core.Attachment, error) {
	if !Allowed(filename) {
		return core.Attachment{}, fmt.Errorf("%w: %s", core.ErrAttachmentType, filepath.Ext(filename))
	}

	base := s.now().Format(timestampLayout) + "_" + SecureFilename(filename)
	f, key, err := s.create(base)
	if err != nil {
		return core.Attachment{}, err
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > s.maxBytes {
		err = core.ErrAttachmentTooLarge
	}
	if err != nil {
		os.Remove(filepath.Join(s.dir, key))
		if errors.Is(err, core.ErrAttachmentTooLarge) {
			return core.Attachment{}, err
		}
		return core.Attachment{}, fmt.Errorf("write attachment: %w", err)
	}

	return core.Attachment{DisplayName: filepath.Base(filename), StorageKey: key}, nil
}

// create opens a new file exclusively, adding a counter to the stem on collisions.
func (s *Store) create(base string) (*os.File, string, error) {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	key := base
	for i := 1; i <= 100; i++ {
		f, err := os.OpenFile(filepath.Join(s.dir, key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, key, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("create attachment: %w", err)
		}
		key = stem + "_" + strconv.Itoa(i) + ext
	}
	return nil, "", fmt.Errorf("create attachment: too many files named %s", base)
}

// Delete removes a stored file. Missing files and empty keys are not errors.
func (s *Store) Delete(key string) error {
	if key == "" {
		return nil
	}
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove attachment %s: %w", key, err)
	}
	return nil
}

// Open returns the file stored under key.
func (s *Store) Open(key string) (*os.File, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("attachment %s: %w", key, core.ErrNotFound)
		}
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	return f, nil
}

// ValidKey reports whether key can only name a file directly inside the store.
func ValidKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	if strings.ContainsAny(key, `/\`) || filepath.IsAbs(key) || filepath.VolumeName(key) != "" {
		return false
	}
	return true
}

func (s *Store) path(key string) (string, error) {
	if !ValidKey(key) {
		return "", core.ErrInvalidStorageKey
	}
	return filepath.Join(s.dir, key), nil
}

var asciiFold = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SecureFilename reduces name to a safe ASCII file name: accents are folded,
// path separators and whitespace become underscores, and anything outside
// [A-Za-z0-9._-] is dropped. An empty result becomes "file".
func SecureFilename(name string) string {
	if folded, _, err := transform.String(asciiFold, name); err == nil {
		name = folded
	}
	name = strings.NewReplacer("/", " ", `\`, " ").Replace(name)

	var b strings.Builder
	for _, field := range strings.Fields(name) {
		if b.Len() > 0 {
			b.WriteByte('_')
		}
		for _, r := range field {
			switch {
			case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
				b.WriteRune(r)
			case r == '.' || r == '-' || r == '_':
				b.WriteRune(r)
			}
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "file"
	}
	return out
}
