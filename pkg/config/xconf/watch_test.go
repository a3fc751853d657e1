package xconf

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_Errors(t *testing.T) {
	t.Run("from bytes", func(t *testing.T) {
		doc, err := NewFromBytes([]byte("a: 1\n"), FormatYAML)
		require.NoError(t, err)
		_, err = Watch(doc, nil)
		assert.ErrorIs(t, err, ErrNotFromFile)
	})

	t.Run("unsupported document", func(t *testing.T) {
		_, err := Watch(fakeDocument{}, nil)
		assert.Error(t, err)
	})
}

func TestWatch_Debounce(t *testing.T) {
	path := createTempFile(t, "values.yaml", "a: 1\n")
	doc, err := New(path)
	require.NoError(t, err)

	w, err := Watch(doc, nil, WithDebounce(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, w.debounce)
	require.NoError(t, w.Stop())

	w, err = Watch(doc, nil, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, w.debounce)
	require.NoError(t, w.Stop())
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := createTempFile(t, "values.yaml", "name: a\n")
	doc, err := New(path)
	require.NoError(t, err)

	reloaded := make(chan error, 16)
	w, err := Watch(doc, func(_ Document, err error) {
		reloaded <- err
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	w.StartAsync()
	defer func() { require.NoError(t, w.Stop()) }()

	require.NoError(t, os.WriteFile(path, []byte("name: b\n"), 0o600))
	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}
	// 一次写入可能产生多个事件，以最终内容为准。
	require.Eventually(t, func() bool {
		return doc.Client().String("name") == "b"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_StopLifecycle(t *testing.T) {
	path := createTempFile(t, "values.yaml", "name: a\n")
	doc, err := New(path)
	require.NoError(t, err)

	t.Run("stop without start", func(t *testing.T) {
		w, err := Watch(doc, nil)
		require.NoError(t, err)
		require.NoError(t, w.Stop())
		require.NoError(t, w.Stop())
		// 停止后不能再启动。
		w.StartAsync()
		w.Start()
	})

	t.Run("blocking start returns after stop", func(t *testing.T) {
		w, err := Watch(doc, nil)
		require.NoError(t, err)
		done := make(chan struct{})
		go func() {
			w.Start()
			close(done)
		}()
		require.Eventually(t, func() bool {
			w.mu.Lock()
			defer w.mu.Unlock()
			return w.running
		}, time.Second, 5*time.Millisecond)
		require.NoError(t, w.Stop())
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Start did not return")
		}
	})

	t.Run("stop cancels a pending reload", func(t *testing.T) {
		calls := make(chan struct{}, 1)
		w, err := Watch(doc, func(Document, error) { calls <- struct{}{} }, WithDebounce(time.Hour))
		require.NoError(t, err)
		w.StartAsync()
		require.NoError(t, os.WriteFile(path, []byte("name: c\n"), 0o600))
		require.Eventually(t, func() bool {
			w.mu.Lock()
			defer w.mu.Unlock()
			return w.timer != nil
		}, 5*time.Second, 5*time.Millisecond)
		require.NoError(t, w.Stop())
		assert.Empty(t, calls)
	})
}

func TestReapply(t *testing.T) {
	ctx := context.Background()
	c := newConfig(t)
	path := createTempFile(t, "values.yaml", "server:\n  host: a\n")
	doc, err := New(path)
	require.NoError(t, err)
	_, err = Apply(ctx, c, doc)
	require.NoError(t, err)

	type result struct {
		report *Report
		err    error
	}
	results := make(chan result, 16)
	w, err := Watch(doc, Reapply(ctx, c, func(r *Report, err error) {
		results <- result{r, err}
	}), WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	w.StartAsync()
	defer func() { require.NoError(t, w.Stop()) }()

	require.NoError(t, os.WriteFile(path, []byte("server:\n  host: b\n"), 0o600))
	deadline := time.After(5 * time.Second)
	for {
		select {
		case r := <-results:
			require.NoError(t, r.err)
			if len(r.report.Applied) == 0 {
				continue
			}
			assert.Equal(t, []string{"server.host"}, r.report.Applied)
			assert.Equal(t, "b", get(t, c, "server.host"))
			return
		case <-deadline:
			t.Fatal("no reapply after write")
		}
	}
}

func TestReapply_ReloadError(t *testing.T) {
	ctx := context.Background()
	c := newConfig(t)
	var (
		gotReport *Report
		gotErr    error
	)
	cb := Reapply(ctx, c, func(r *Report, err error) {
		gotReport, gotErr = r, err
	})

	boom := errors.New("boom")
	cb(nil, boom)
	assert.Nil(t, gotReport)
	assert.ErrorIs(t, gotErr, boom)
}

type fakeDocument struct {
	Document
}
