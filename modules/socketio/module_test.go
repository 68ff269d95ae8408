package socketio

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/treeclimb/internal/registry"
)

func TestDial_RejectsBadURLs(t *testing.T) {
	testCases := map[string]string{
		"empty":    "",
		"relative": "/socket.io",
		"invalid":  "http://[::1",
	}
	for name, u := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := Dial(context.Background(), Config{URL: u}, "run", nil)
			assert.Error(t, err)
		})
	}
}

func TestDial_FailsWithoutServer(t *testing.T) {
	// Reserve a port and release it so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err = Dial(ctx, Config{URL: "http://" + addr}, "run", nil)
	assert.Error(t, err)
}

func TestPayload(t *testing.T) {
	p := Payload(registry.Leaf{RunID: "r", Seq: 3, Key: "b", Value: 1.5, Path: "a.b"})
	assert.Equal(t, map[string]any{
		"run_id": "r",
		"seq":    3,
		"path":   "a.b",
		"key":    "b",
		"value":  1.5,
	}, p)
}

func TestRegister(t *testing.T) {
	r := registry.New()
	(&Module{}).Register(r)
	assert.Equal(t, []string{"socketio"}, r.Names())
}
