package storage

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func multipartFile(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("avatar", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(32<<20))

	files := req.MultipartForm.File["avatar"]
	require.Len(t, files, 1)
	return files[0]
}

func TestSaveAndRemoveAvatar(t *testing.T) {
	dir := t.TempDir()
	store, err := NewAvatarStore(dir, 0)
	require.NoError(t, err)

	file := multipartFile(t, "portrait.PNG", []byte("fake-image-bytes"))

	name, err := store.Save(file)
	require.NoError(t, err)
	require.NotEqual(t, "portrait.PNG", name)
	require.Equal(t, ".png", filepath.Ext(name))

	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	require.Equal(t, []byte("fake-image-bytes"), data)

	require.NoError(t, store.Remove(name))
	_, err = os.Stat(filepath.Join(dir, name))
	require.True(t, os.IsNotExist(err))

	// Removing a missing file is not an error.
	require.NoError(t, store.Remove(name))
}

func TestSaveRejectsUnsupportedType(t *testing.T) {
	store, err := NewAvatarStore(t.TempDir(), 0)
	require.NoError(t, err)

	file := multipartFile(t, "payload.exe", []byte("nope"))
	_, err = store.Save(file)
	require.ErrorIs(t, err, ErrUnsupportedImageType)
}

func TestSaveRejectsOversizedUpload(t *testing.T) {
	store, err := NewAvatarStore(t.TempDir(), 8)
	require.NoError(t, err)

	file := multipartFile(t, "big.png", bytes.Repeat([]byte("x"), 64))
	_, err = store.Save(file)
	require.ErrorIs(t, err, ErrImageTooLarge)
}

func TestSaveGeneratesUniqueNames(t *testing.T) {
	store, err := NewAvatarStore(t.TempDir(), 0)
	require.NoError(t, err)

	first, err := store.Save(multipartFile(t, "a.png", []byte("one")))
	require.NoError(t, err)
	second, err := store.Save(multipartFile(t, "a.png", []byte("two")))
	require.NoError(t, err)

	require.NotEqual(t, first, second)
}
