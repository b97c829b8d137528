package resource

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(bucketName, objectName)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func (m *mockStore) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error) {
	args := m.Called(bucketName, objectName)
	obj, _ := args.Get(0).(*minio.Object)
	return obj, args.Error(1)
}

func (m *mockStore) PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error) {
	args := m.Called(bucketName, objectName, expires)
	u, _ := args.Get(0).(*url.URL)
	return u, args.Error(1)
}

func tempMedia(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
	return path
}

func TestLookupFile(t *testing.T) {
	path := tempMedia(t, "movie.mkv", 2048)
	p := NewProvider(nil, 0, nil)

	for _, location := range []string{path, "file://" + path} {
		acc, err := p.Lookup(context.Background(), location)
		require.NoError(t, err)

		fa, ok := acc.(*FileAccessor)
		require.True(t, ok, "expected a file accessor for %s", location)
		assert.Equal(t, KindFile, fa.Kind())
		assert.Equal(t, path, fa.LocalPath())
		assert.Equal(t, int64(2048), fa.Size())
		assert.Equal(t, "video/x-matroska", fa.ContentType())
		assert.False(t, fa.ModTime().IsZero())
	}
}

func TestLookupFileErrors(t *testing.T) {
	p := NewProvider(nil, 0, nil)
	ctx := context.Background()

	_, err := p.Lookup(ctx, filepath.Join(t.TempDir(), "missing.mp4"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = p.Lookup(ctx, t.TempDir())
	assert.Error(t, err)

	_, err = p.Lookup(ctx, "http://example.com/movie.mp4")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	_, err = p.Lookup(ctx, "s3://media/movie.mp4")
	assert.ErrorIs(t, err, ErrUnsupportedScheme, "object lookups need a store")
}

func TestLookupObject(t *testing.T) {
	store := &mockStore{}
	store.On("StatObject", "media", "films/movie.mp4").
		Return(minio.ObjectInfo{Size: 4096, ContentType: "video/mp4"}, nil)

	p := NewProvider(store, time.Hour, nil)
	acc, err := p.Lookup(context.Background(), "s3://media/films/movie.mp4")
	require.NoError(t, err)

	oa, ok := acc.(*ObjectAccessor)
	require.True(t, ok)
	assert.Equal(t, KindObject, oa.Kind())
	assert.Equal(t, "media", oa.Bucket())
	assert.Equal(t, "films/movie.mp4", oa.Key())
	assert.Equal(t, "s3://media/films/movie.mp4", oa.Location())
	assert.Equal(t, int64(4096), oa.Size())
	assert.Equal(t, "video/mp4", oa.ContentType())
	store.AssertExpectations(t)
}

func TestLookupObjectErrors(t *testing.T) {
	store := &mockStore{}
	store.On("StatObject", "media", "gone.mp4").
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"})
	store.On("StatObject", "media", "flaky.mp4").
		Return(minio.ObjectInfo{}, errors.New("connection reset"))

	p := NewProvider(store, time.Hour, nil)
	ctx := context.Background()

	_, err := p.Lookup(ctx, "s3://media/gone.mp4")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = p.Lookup(ctx, "s3://media/flaky.mp4")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = p.Lookup(ctx, "s3://media")
	assert.Error(t, err)
}

func TestInputURL(t *testing.T) {
	path := tempMedia(t, "song.flac", 16)
	signed, _ := url.Parse("https://minio.local/media/movie.mp4?X-Amz-Signature=abc")

	store := &mockStore{}
	store.On("StatObject", "media", "movie.mp4").Return(minio.ObjectInfo{Size: 10}, nil)
	store.On("PresignedGetObject", "media", "movie.mp4", 2*time.Hour).Return(signed, nil)

	p := NewProvider(store, 2*time.Hour, nil)
	ctx := context.Background()

	got, err := p.InputURL(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	got, err = p.InputURL(ctx, "s3://media/movie.mp4")
	require.NoError(t, err)
	assert.Equal(t, signed.String(), got)
	store.AssertExpectations(t)
}

func TestGetContentType(t *testing.T) {
	tests := []struct {
		filePath string
		wantType string
	}{
		{"video.mp4", "video/mp4"},
		{"VIDEO.MKV", "video/x-matroska"},
		{"video.avi", "video/x-msvideo"},
		{"broadcast.ts", "video/mp2t"},
		{"broadcast.m2ts", "video/vnd.dlna.mpeg-tts"},
		{"playlist.m3u8", "application/vnd.apple.mpegurl"},
		{"song.flac", "audio/flac"},
		{"photo.jpeg", "image/jpeg"},
		{"unknown.xyz", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.filePath, func(t *testing.T) {
			if got := getContentType(tt.filePath); got != tt.wantType {
				t.Errorf("getContentType(%q) = %q, want %q", tt.filePath, got, tt.wantType)
			}
		})
	}
}
