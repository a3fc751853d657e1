package xconf

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/omeyang/xoption/pkg/config/xconfig"
	"github.com/omeyang/xoption/pkg/observability/xlog"
)

// WatchCallback 文件变更后的回调，err 为重载结果。
type WatchCallback func(doc Document, err error)

// 触发重载的文件事件。
const reloadOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

// Watcher 监视文档文件，变更后重载并回调。
type Watcher struct {
	doc      *koanfDocument
	name     string
	fs       *fsnotify.Watcher
	callback WatchCallback
	debounce time.Duration
	done     chan struct{}

	mu      sync.Mutex
	running bool
	stopped bool
	timer   *time.Timer
}

// WatchOption 监视选项。
type WatchOption func(*Watcher)

// WithDebounce 设置防抖时间，期间的多次变更只重载一次。非正值忽略，默认 100ms。
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watch 创建文档监视器，Start 或 StartAsync 后开始监视。
//
// 监视文件所在目录，先删除再创建或写临时文件后 rename 的保存方式都能捕获。
//
//	doc, _ := xconf.New("/etc/xoption/values.yaml")
//	w, err := xconf.Watch(doc, xconf.Reapply(ctx, cfg, nil))
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//	w.StartAsync()
func Watch(doc Document, callback WatchCallback, opts ...WatchOption) (*Watcher, error) {
	kd, ok := doc.(*koanfDocument)
	if !ok {
		return nil, fmt.Errorf("xconf: cannot watch document type %T", doc)
	}
	if kd.path == "" {
		return nil, ErrNotFromFile
	}

	w := &Watcher{
		doc:      kd,
		name:     filepath.Base(kd.path),
		callback: callback,
		debounce: 100 * time.Millisecond,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xconf: create watcher: %w", err)
	}
	dir := filepath.Dir(kd.path)
	if err := fs.Add(dir); err != nil {
		return nil, errors.Join(fmt.Errorf("xconf: watch %s: %w", dir, err), fs.Close())
	}
	w.fs = fs
	return w, nil
}

// Start 阻塞地监视，直到 Stop。
func (w *Watcher) Start() {
	if w.markRunning() {
		w.loop()
	}
}

// StartAsync 在后台 goroutine 中监视。
func (w *Watcher) StartAsync() {
	if w.markRunning() {
		go w.loop()
	}
}

// markRunning 停止后或已在运行时返回 false。
func (w *Watcher) markRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.stopped {
		return false
	}
	w.running = true
	return true
}

// Stop 停止监视并丢弃尚未触发的重载。可重复调用，也可在回调中调用。
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped, w.running = true, false
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.done)
	return w.fs.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) == w.name && ev.Op&reloadOps != 0 {
				w.schedule()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			if w.callback != nil {
				w.callback(w.doc, fmt.Errorf("xconf: watch: %w", err))
			}
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.fire)
		return
	}
	w.timer.Reset(w.debounce)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}
	err := w.doc.Reload()
	if w.callback != nil {
		w.callback(w.doc, err)
	}
}

// Reapply 返回一个 WatchCallback：重载成功后把文档重新 Apply 到 cfg。
// done 非 nil 时收到每次的结果。
func Reapply(ctx context.Context, cfg *xconfig.Config, done func(*Report, error), opts ...ApplyOption) WatchCallback {
	o := defaultApplyOptions()
	for _, opt := range opts {
		opt(o)
	}
	return func(doc Document, err error) {
		if err != nil {
			o.logger.Error(ctx, "document reload failed", xlog.Config(cfg.Name()), xlog.Err(err))
			if done != nil {
				done(nil, err)
			}
			return
		}
		report, err := Apply(ctx, cfg, doc, opts...)
		if done != nil {
			done(report, err)
		}
	}
}
