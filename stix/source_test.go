package stix_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/attack-kb/stix"
	"github.com/zero-day-ai/attack-kb/stix/stixtest"
)

// setupRedisSource creates a miniredis instance and returns a connected RedisSource.
func setupRedisSource(t *testing.T, key string) (*stix.RedisSource, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	src, err := stix.NewRedisSource(stix.RedisOptions{
		URL: fmt.Sprintf("redis://%s", mr.Addr()),
		Key: key,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = src.Close()
	})

	return src, mr
}

func TestRedisSource_PublishAndLoad(t *testing.T) {
	src, _ := setupRedisSource(t, "")
	ctx := context.Background()

	assert.Equal(t, stix.DefaultRedisKey, src.Key())
	require.NoError(t, src.Publish(ctx, []byte(stixtest.MiniJSON)))

	b, err := stix.Load(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "bundle--mini", b.ID)
}

func TestRedisSource_Open(t *testing.T) {
	src, mr := setupRedisSource(t, "kb:enterprise")
	require.NoError(t, mr.Set("kb:enterprise", `{"objects": []}`))

	rc, err := src.Open(context.Background())
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, `{"objects": []}`, string(data))
	assert.Contains(t, src.String(), "#kb:enterprise")
}

func TestRedisSource_MissingKey(t *testing.T) {
	src, _ := setupRedisSource(t, "kb:absent")

	_, err := stix.Load(context.Background(), src)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestNewRedisSource_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := stix.NewRedisSource(stix.RedisOptions{URL: fmt.Sprintf("redis://%s", addr)})
	assert.Error(t, err)
}

func TestNewRedisSource_BadURL(t *testing.T) {
	_, err := stix.NewRedisSource(stix.RedisOptions{URL: "http://not-redis"})
	assert.Error(t, err)
}

func TestFileSource_String(t *testing.T) {
	assert.Equal(t, "file:///data/enterprise-attack.json", stix.FileSource{Path: "/data/enterprise-attack.json"}.String())
}
