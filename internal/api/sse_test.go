package api

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamOutlivesWriteTimeout(t *testing.T) {
	updates := make(chan int)
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stream(w, r, "tick", updates)
	}))
	srv.Config.WriteTimeout = 200 * time.Millisecond
	srv.Start()
	defer srv.Close()

	go func() {
		defer close(updates)
		for i := 1; i <= 3; i++ {
			time.Sleep(150 * time.Millisecond)
			updates <- i
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var data []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"1", "2", "3"}, data)
}

type brokenWriter struct {
	header http.Header
	writes int
}

func (w *brokenWriter) Header() http.Header { return w.header }

func (w *brokenWriter) Write(p []byte) (int, error) {
	w.writes++
	return 0, errors.New("broken pipe")
}

func (w *brokenWriter) WriteHeader(int) {}

func (w *brokenWriter) Flush() {}

func TestStreamStopsOnWriteError(t *testing.T) {
	updates := make(chan int, 1)
	updates <- 1
	w := &brokenWriter{header: http.Header{}}
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		stream(w, req, "tick", updates)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream kept running after a failed write")
	}
	assert.Equal(t, 1, w.writes)
}
