package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Extension is appended to a stem by FromStem.
const Extension = ".yml"

// ErrPathIsDirectory is returned when the path provided to the Fetcher points to a directory instead of a file.
var ErrPathIsDirectory = errors.New("path is a directory, not a file")

// ErrNotFound is returned when the setup document does not exist.
var ErrNotFound = errors.New("setup document not found")

// Fetcher implements config.DataFetcher for a single setup document.
type Fetcher struct {
	filepath string
	data     []byte
}

// NewFetcher returns a constructor function that reads fpath.
// The constructor form lets an fx container decide when the read happens.
func NewFetcher(fpath string) func() (*Fetcher, error) {
	return func() (*Fetcher, error) {
		cleanPath := filepath.Clean(fpath)

		stat, err := os.Stat(cleanPath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("stat file %q: %w: %w", cleanPath, ErrNotFound, err)
			}

			return nil, fmt.Errorf("stat file %q: %w", cleanPath, err)
		}

		if stat.IsDir() {
			return nil, fmt.Errorf("path %q: %w", cleanPath, ErrPathIsDirectory)
		}

		data, err := os.ReadFile(cleanPath) // #nosec G304 -- path is cleaned and validated
		if err != nil {
			return nil, fmt.Errorf("reading file %q: %w", cleanPath, err)
		}

		return &Fetcher{
			filepath: cleanPath,
			data:     data,
		}, nil
	}
}

// FromStem reads the document stem + Extension.
func FromStem(stem string) (*Fetcher, error) {
	return NewFetcher(stem + Extension)()
}

// Fetch returns the document contents.
func (f *Fetcher) Fetch() ([]byte, error) {
	return f.data, nil
}

// Path returns the cleaned path of the document.
func (f *Fetcher) Path() string {
	return f.filepath
}
