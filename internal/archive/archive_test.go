package archive

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kenneth/pinenut/internal/config"
	"github.com/kenneth/pinenut/internal/logfile"
	"github.com/kenneth/pinenut/internal/s3"
)

// fakeClient is an in-memory s3.Client stand-in recording every PutObject
// call's key, body and metadata, so tests can assert on them without
// talking to a real S3-compatible backend.
type fakeClient struct {
	puts []fakePut
}

type fakePut struct {
	bucket, key string
	body        []byte
	metadata    map[string]string
}

func (f *fakeClient) PutObject(ctx context.Context, bucket, key string, r io.Reader, metadata map[string]string) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.puts = append(f.puts, fakePut{bucket: bucket, key: key, body: body, metadata: metadata})
	return nil
}

func (f *fakeClient) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, map[string]string, error) {
	return nil, nil, nil
}
func (f *fakeClient) DeleteObject(ctx context.Context, bucket, key string) error { return nil }
func (f *fakeClient) HeadObject(ctx context.Context, bucket, key string) (map[string]string, error) {
	return nil, nil
}
func (f *fakeClient) ListObjects(ctx context.Context, bucket, prefix string, opts s3.ListOptions) ([]s3.ObjectInfo, error) {
	return nil, nil
}

var _ s3.Client = (*fakeClient)(nil)

func TestNewDisabledReturnsNil(t *testing.T) {
	a, err := New(config.ArchiveConfig{Enabled: false})
	require.NoError(t, err)
	require.Nil(t, a)
}

func TestArchiverKey(t *testing.T) {
	a := &Archiver{cfg: config.ArchiveConfig{Prefix: "logs"}}
	require.Equal(t, "logs/checkout/checkout-100.pine", a.key("checkout", "checkout-100.pine"))
}

func TestArchiverUpload(t *testing.T) {
	dir := t.TempDir()
	when := time.Unix(1_700_000_000, 0).UTC()
	f := logfile.New(dir, "checkout", when, logfile.ModeWrite)
	_, err := f.Write([]byte("chunk-bytes"))
	require.NoError(t, err)
	require.NoError(t, f.Flush())

	client := &fakeClient{}
	a := &Archiver{client: client, cfg: config.ArchiveConfig{Bucket: "b", Prefix: "logs"}}

	require.NoError(t, a.Upload(context.Background(), "checkout", f))
	require.Len(t, client.puts, 1)
	put := client.puts[0]
	require.Equal(t, "b", put.bucket)
	require.Equal(t, "logs/checkout/"+f.Name(), put.key)
	require.Equal(t, []byte("chunk-bytes"), put.body)
	require.Equal(t, "checkout", put.metadata["identifier"])

	_, err = os.Stat(f.Path())
	require.NoError(t, err, "file should survive when DeleteAfterUpload is unset")
}

func TestArchiverUploadDeleteAfterUpload(t *testing.T) {
	dir := t.TempDir()
	f := logfile.New(dir, "checkout", time.Unix(1_700_000_000, 0).UTC(), logfile.ModeWrite)
	_, err := f.Write([]byte("chunk-bytes"))
	require.NoError(t, err)
	require.NoError(t, f.Flush())

	client := &fakeClient{}
	a := &Archiver{client: client, cfg: config.ArchiveConfig{Bucket: "b", DeleteAfterUpload: true}}

	require.NoError(t, a.Upload(context.Background(), "checkout", f))
	_, err = os.Stat(f.Path())
	require.True(t, os.IsNotExist(err))
}

func TestArchiverUploadAllSkipsCurrent(t *testing.T) {
	dir := t.TempDir()
	older := logfile.New(dir, "checkout", time.Unix(1_700_000_000, 0).UTC(), logfile.ModeWrite)
	_, err := older.Write([]byte("old"))
	require.NoError(t, err)
	require.NoError(t, older.Flush())
	require.NoError(t, older.Close())

	current := logfile.New(dir, "checkout", time.Unix(1_700_000_100, 0).UTC(), logfile.ModeWrite)
	_, err = current.Write([]byte("current"))
	require.NoError(t, err)
	require.NoError(t, current.Flush())

	client := &fakeClient{}
	a := &Archiver{client: client, cfg: config.ArchiveConfig{Bucket: "b"}}

	require.NoError(t, a.UploadAll(context.Background(), dir, "checkout", current))
	require.Len(t, client.puts, 1)
	require.Equal(t, a.key("checkout", older.Name()), client.puts[0].key)
}
