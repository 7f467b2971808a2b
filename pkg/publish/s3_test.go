package publish

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.False(t, Config{Endpoint: "localhost:9000"}.Enabled())
	assert.True(t, Config{Endpoint: "localhost:9000", Bucket: "bridges"}.Enabled())
}

func TestNewS3Publisher_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"no endpoint", Config{Bucket: "b", AccessKey: "a", SecretKey: "s"}, "endpoint"},
		{"no credentials", Config{Endpoint: "localhost:9000", Bucket: "b"}, "access key"},
		{"no bucket", Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}, "bucket"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewS3Publisher(tc.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestNewS3Publisher_Defaults(t *testing.T) {
	p, err := NewS3Publisher(Config{
		Endpoint:  "localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    " bridges ",
		Prefix:    "/team/",
	})
	require.NoError(t, err)
	assert.Equal(t, "bridges", p.bucket)
	assert.Equal(t, "us-east-1", p.region)
	assert.Equal(t, "team", p.prefix)
}

func TestObjectKey(t *testing.T) {
	built := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	assert.Equal(t, "team/my-service/0123456789ab/sential_payload.jsonl",
		ObjectKey("/team/", Metadata{Repo: "my service", Head: "0123456789abcdef"}))
	assert.Equal(t, "api/20260301T123000Z/sential_payload.jsonl",
		ObjectKey("", Metadata{Repo: "api", BuiltAt: built}))
	assert.Equal(t, "repository/abc/sential_payload.jsonl",
		ObjectKey("", Metadata{Repo: "///", Head: "abc"}))
}

// TestPublish_Live runs against a real endpoint when one is configured.
func TestPublish_Live(t *testing.T) {
	endpoint := os.Getenv("SENTIAL_TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("SENTIAL_TEST_S3_ENDPOINT not set")
	}
	p, err := NewS3Publisher(Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("SENTIAL_TEST_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("SENTIAL_TEST_S3_SECRET_KEY"),
		Bucket:    "sential-test",
	})
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "payload.jsonl")
	require.NoError(t, os.WriteFile(file, []byte(`{"path":"a.py","tags":["function f"]}`+"\n"), 0o644))

	obj, err := p.Publish(context.Background(), file, Metadata{Repo: "test", Head: "deadbeef"})
	require.NoError(t, err)
	assert.Equal(t, "test/deadbeef/sential_payload.jsonl", obj.Key)
	assert.Positive(t, obj.Size)
}
