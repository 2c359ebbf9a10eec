package archive

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyReportKey(t *testing.T) {
	assert.Equal(t, "daily/main-shop/2024-05-10.txt", DailyReportKey("main-shop", "2024-05-10"))
}

func TestMemoryArchiveCopiesBody(t *testing.T) {
	a := NewMemoryArchive()
	body := []byte("DAILY REPORT")

	require.NoError(t, a.Put(context.Background(), "daily/x.txt", body, "text/plain"))
	body[0] = 'X'

	stored, ok := a.Object("daily/x.txt")
	require.True(t, ok)
	assert.Equal(t, "DAILY REPORT", string(stored))
	assert.ErrorIs(t, a.Put(context.Background(), "", body, "text/plain"), ErrEmptyKey)
}

func TestMinioArchiveUpload(t *testing.T) {
	endpoint := os.Getenv("REPAIRDESK_TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("set REPAIRDESK_TEST_MINIO_ENDPOINT to run object storage integration test")
	}
	ctx := context.Background()
	a, err := NewMinioArchive(ctx, MinioConfig{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("REPAIRDESK_TEST_MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("REPAIRDESK_TEST_MINIO_SECRET_KEY"),
		Bucket:    "repairdesk-it",
	})
	require.NoError(t, err)

	key := DailyReportKey("it-shop", time.Now().Format("2006-01-02-150405"))
	require.NoError(t, a.Put(ctx, key, []byte("report body"), "text/plain; charset=utf-8"))

	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	require.NoError(t, err)
	defer obj.Close()
	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, "report body", string(got))

	require.NoError(t, a.client.RemoveObject(ctx, a.bucket, key, minio.RemoveObjectOptions{}))
}
