package storage

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalStoragePresignAndRedeem(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), "http://localhost:8080/files", NewSignedURLSigner("secret", time.Minute))
	require.NoError(t, err)

	put, err := store.PresignUpload(context.Background(), "document/2026/10/a.pdf", "application/pdf", time.Minute)
	require.NoError(t, err)
	require.Equal(t, http.MethodPut, put.Method)
	require.True(t, strings.HasPrefix(put.URL, "http://localhost:8080/files/"))

	raw, err := url.PathUnescape(strings.TrimPrefix(put.URL, "http://localhost:8080/files/"))
	require.NoError(t, err)

	key, err := store.Redeem(raw, http.MethodPut)
	require.NoError(t, err)
	require.Equal(t, "document/2026/10/a.pdf", key)

	_, err = store.Redeem(raw, http.MethodGet)
	require.Error(t, err)

	n, err := store.SaveStream(key, strings.NewReader("hello"))
	require.NoError(t, err)
	require.Equal(t, int64(5), n)

	f, err := store.Open(key)
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Equal(t, "hello", string(body))

	require.NoError(t, store.Delete(key))
	require.NoError(t, store.Delete(key))
}

func TestLocalStorageRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), "", NewSignedURLSigner("secret", time.Minute))
	require.NoError(t, err)

	_, err = store.SaveStream("../outside.txt", strings.NewReader("x"))
	require.Error(t, err)
	_, err = store.Open("/etc/passwd")
	require.Error(t, err)
}

func TestObjectKeyLayout(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	key := ObjectKey("Document", "Data Sheet.PDF", now)
	require.True(t, strings.HasPrefix(key, "document/2026/03/"))
	require.True(t, strings.HasSuffix(key, ".pdf"))

	require.True(t, strings.HasPrefix(ObjectKey("", "noext", now), "document/2026/03/"))
}
