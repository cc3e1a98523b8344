//go:build integration

package storage

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindspool/recall/internal/testutil"
)

func newTestClient(t *testing.T) (*S3Client, func()) {
	t.Helper()
	ctx := context.Background()

	rustfs := testutil.NewRustFSContainer(ctx, t)

	client, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        rustfs.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "recall-sources-test",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx))

	return client, func() {
		if err := rustfs.Terminate(ctx); err != nil {
			t.Logf("failed to terminate rustfs container: %v", err)
		}
	}
}

func TestS3Client_ArchiveAndDownload(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()
	ctx := context.Background()

	content := []byte("%PDF-1.7 archived source bytes")
	require.NoError(t, client.ArchiveSource(ctx, "doc-123", "notes.pdf", content))

	url, err := client.GenerateDownloadURL(ctx, "doc-123", "notes.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, url)

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	downloaded, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, content, downloaded)
}

func TestS3Client_ArchiveOverwritesExisting(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, client.ArchiveSource(ctx, "doc-123", "notes.pdf", []byte("first")))
	require.NoError(t, client.ArchiveSource(ctx, "doc-123", "notes.pdf", []byte("second")))

	url, err := client.GenerateDownloadURL(ctx, "doc-123", "notes.pdf")
	require.NoError(t, err)

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	downloaded, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), downloaded)
}

func TestS3Client_DeleteSource(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, client.ArchiveSource(ctx, "doc-123", "notes.pdf", []byte("data")))
	require.NoError(t, client.DeleteSource(ctx, "doc-123", "notes.pdf"))

	url, err := client.GenerateDownloadURL(ctx, "doc-123", "notes.pdf")
	require.NoError(t, err)

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestS3Client_EnsureBucketIdempotent(t *testing.T) {
	client, cleanup := newTestClient(t)
	defer cleanup()

	assert.NoError(t, client.EnsureBucket(context.Background()))
}
