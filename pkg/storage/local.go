package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage keeps document binaries on disk and issues HMAC signed URLs
// that the file handler redeems.
type LocalStorage struct {
	baseDir string
	baseURL string
	signer  *SignedURLSigner
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir, baseURL string, signer *SignedURLSigner) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./data/objects"
	}
	if signer == nil {
		return nil, fmt.Errorf("local storage requires a url signer")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir, baseURL: strings.TrimRight(baseURL, "/"), signer: signer}, nil
}

// PresignUpload implements ObjectStore.
func (s *LocalStorage) PresignUpload(_ context.Context, key, _ string, ttl time.Duration) (*PresignedURL, error) {
	return s.presign(http.MethodPut, key, ttl)
}

// PresignDownload implements ObjectStore.
func (s *LocalStorage) PresignDownload(_ context.Context, key string, ttl time.Duration) (*PresignedURL, error) {
	return s.presign(http.MethodGet, key, ttl)
}

func (s *LocalStorage) presign(method, key string, ttl time.Duration) (*PresignedURL, error) {
	token, expiresAt, err := s.signer.Generate(method, key, ttl)
	if err != nil {
		return nil, fmt.Errorf("sign %s url: %w", strings.ToLower(method), err)
	}
	return &PresignedURL{
		URL:       fmt.Sprintf("%s/%s", s.baseURL, url.PathEscape(token)),
		Method:    method,
		ObjectKey: key,
		ExpiresAt: expiresAt,
	}, nil
}

// Redeem validates a token for the given method and returns the object key.
func (s *LocalStorage) Redeem(token, method string) (string, error) {
	signedMethod, key, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", err
	}
	if signedMethod != method {
		return "", fmt.Errorf("token not valid for %s", method)
	}
	return key, nil
}

// SaveStream copies from reader into the object path.
func (s *LocalStorage) SaveStream(key string, r io.Reader) (int64, error) {
	path, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("prepare object directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create object file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	n, err := io.Copy(file, r)
	if err != nil {
		return 0, fmt.Errorf("write object stream: %w", err)
	}
	return n, nil
}

// Open returns a read-only handle for the stored object.
func (s *LocalStorage) Open(key string) (*os.File, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open object file: %w", err)
	}
	return file, nil
}

// Delete removes a stored object if present.
func (s *LocalStorage) Delete(key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object file: %w", err)
	}
	return nil
}

func (s *LocalStorage) resolve(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(cleaned) || cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.baseDir, cleaned), nil
}

var _ ObjectStore = (*LocalStorage)(nil)
