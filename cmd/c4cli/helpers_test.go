package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/connectfour/api"
	"github.com/wricardo/connectfour/game/archive"
	"github.com/wricardo/connectfour/game/service"
	"github.com/wricardo/connectfour/game/session"
	gamews "github.com/wricardo/connectfour/transport/websocket"
)

// newServer runs the full server stack on an httptest server.
func newServer(t *testing.T) (*httptest.Server, *archive.MemoryStore) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := archive.NewMemoryStore(100)
	hub := gamews.NewHub(zap.NewNop())
	go hub.Run(ctx)

	svc := service.NewGameService(session.NewRegistry(),
		service.WithNotifier(hub),
		service.WithArchive(store),
	)
	ts := httptest.NewServer(api.NewServer(svc, hub))
	t.Cleanup(ts.Close)
	return ts, store
}

// lockedBuffer is a bytes.Buffer safe for concurrent writers and readers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// waitFor polls buf until it contains want.
func waitFor(t *testing.T, buf *lockedBuffer, want string) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s := buf.String(); strings.Contains(s, want) {
			return s
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q in output:\n%s", want, buf.String())
	return ""
}
