package tokenstore

import (
	"encoding/json"
	"os"
)

// filePayload is the on-disk JSON shape. Field names match the wire shape of
// the renewal endpoint so a stored file is recognizable next to API traffic.
type filePayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// File persists the credential pair as a JSON file with 0600 permissions.
//
// NB: no file locking; concurrent writers from separate processes can race.
type File struct {
	path   string
	logger Logger
}

// FileOption is a functional option for configuring a File store.
type FileOption func(*File)

// WithFileLogger sets a logger for storage failures. If not set, failures
// are silently swallowed.
func WithFileLogger(logger Logger) FileOption {
	return func(f *File) {
		f.logger = logger
	}
}

// NewFile creates a file-backed store at the given path. The file is created
// on the first Write; a missing or unreadable file reads as "no credentials".
func NewFile(path string, opts ...FileOption) *File {
	f := &File{path: path}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Read loads the persisted pair. A missing, unreadable, or corrupt file
// yields a zero Pair.
func (f *File) Read() Pair {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			f.logf("tokenstore: read %s: %v", f.path, err)
		}
		return Pair{}
	}

	var payload filePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		f.logf("tokenstore: corrupt store file %s: %v", f.path, err)
		return Pair{}
	}

	return Pair{AccessToken: payload.AccessToken, RefreshToken: payload.RefreshToken}
}

// Write persists the pair, replacing the file contents.
func (f *File) Write(pair Pair) {
	data, err := json.Marshal(filePayload{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
	if err != nil {
		f.logf("tokenstore: marshal: %v", err)
		return
	}

	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		f.logf("tokenstore: write %s: %v", f.path, err)
	}
}

// Clear removes the file. Removing an already-absent file is not a failure.
func (f *File) Clear() {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		f.logf("tokenstore: clear %s: %v", f.path, err)
	}
}

func (f *File) logf(format string, args ...any) {
	if f.logger != nil {
		f.logger.Printf(format, args...)
	}
}
