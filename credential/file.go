package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type fileDocument struct {
	AccessToken  string          `json:"accessToken,omitempty"`
	RefreshToken string          `json:"refreshToken,omitempty"`
	User         json.RawMessage `json:"user,omitempty"`
}

// FileStore persists credentials as a single JSON document on disk. Writes
// go to a temporary file in the same directory followed by a rename, so a
// reader never sees a torn document.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore describes the newfilestore operation and its observable behavior.
//
// NewFileStore may return an error when input validation or dependency calls fail.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store path must not be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create credential directory: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

func (f *FileStore) read() (fileDocument, error) {
	var doc fileDocument

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("read credential file: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		// A corrupt document is unrecoverable state; treat it as empty so the
		// session layer forces re-authentication instead of erroring forever.
		return fileDocument{}, nil
	}
	return doc, nil
}

func (f *FileStore) write(doc fileDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode credential file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp credential file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp credential file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace credential file: %w", err)
	}
	return nil
}

// AccessToken describes the accesstoken operation and its observable behavior.
//
// AccessToken may return an error when input validation or dependency calls fail.
func (f *FileStore) AccessToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return "", err
	}
	return doc.AccessToken, nil
}

// RefreshToken describes the refreshtoken operation and its observable behavior.
//
// RefreshToken may return an error when input validation or dependency calls fail.
func (f *FileStore) RefreshToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return "", err
	}
	return doc.RefreshToken, nil
}

// Profile describes the profile operation and its observable behavior.
//
// Profile may return an error when input validation or dependency calls fail.
func (f *FileStore) Profile(context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	if len(doc.User) == 0 {
		return nil, nil
	}
	return []byte(doc.User), nil
}

// SetSession describes the setsession operation and its observable behavior.
//
// SetSession may return an error when input validation or dependency calls fail.
func (f *FileStore) SetSession(_ context.Context, pair TokenPair, profile []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(fileDocument{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         json.RawMessage(profile),
	})
}

// SetTokens describes the settokens operation and its observable behavior.
//
// SetTokens may return an error when input validation or dependency calls fail.
func (f *FileStore) SetTokens(_ context.Context, pair TokenPair) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	doc.AccessToken = pair.AccessToken
	doc.RefreshToken = pair.RefreshToken
	return f.write(doc)
}

// SetProfile describes the setprofile operation and its observable behavior.
//
// SetProfile may return an error when input validation or dependency calls fail.
func (f *FileStore) SetProfile(_ context.Context, profile []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	doc.User = json.RawMessage(profile)
	return f.write(doc)
}

// Clear describes the clear operation and its observable behavior.
//
// Clear may return an error when input validation or dependency calls fail.
func (f *FileStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credential file: %w", err)
	}
	return nil
}
