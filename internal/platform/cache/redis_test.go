package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnectsByAddress(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), mr.Addr())
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, mr.Addr(), client.Options().Addr)
}

func TestNewConnectsByURL(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := New(context.Background(), "redis://"+mr.Addr()+"/2")
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, 2, client.Options().DB)
}

func TestNewFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), addr)
	assert.ErrorContains(t, err, "platform/cache: ping")
}

func TestOptionsRejectsEmptyTarget(t *testing.T) {
	_, err := Options("  ")
	assert.Error(t, err)
	_, err = Options("redis://:bad port")
	assert.Error(t, err)
}
