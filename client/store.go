package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskSuccess TaskStatus = "success"
	TaskError   TaskStatus = "error"
)

// Task is the client-side record of one submitted video.
type Task struct {
	Title     string     `yaml:"title" json:"title"`
	Status    TaskStatus `yaml:"status" json:"status"`
	Message   string     `yaml:"message" json:"message"`
	Timestamp int64      `yaml:"timestamp" json:"timestamp"` // unix millis
	// ExpiresAt is when a terminal task is dropped, in unix millis. Zero
	// keeps the task.
	ExpiresAt int64 `yaml:"expires_at,omitempty" json:"expires_at,omitempty"`
}

// Terminal reports whether the task reached success or error.
func (t Task) Terminal() bool {
	return t.Status == TaskSuccess || t.Status == TaskError
}

func (t Task) expired(now time.Time) bool {
	return t.Terminal() && t.ExpiresAt != 0 && now.UnixMilli() >= t.ExpiresAt
}

// Settings are the connection details entered by the user.
type Settings struct {
	SiteURL string `yaml:"site_url"`
	APIKey  string `yaml:"api_key"`
}

func (s Settings) Complete() bool {
	return s.SiteURL != "" && s.APIKey != ""
}

type document struct {
	Settings  Settings        `yaml:"settings"`
	TaskQueue map[string]Task `yaml:"task_queue"`
}

// Listener receives the full queue after every change.
type Listener func(queue map[string]Task)

// TaskStore keeps the task queue and settings in a YAML file shared by all
// client processes. Writes replace the file atomically and the last writer
// wins per key. When the file cannot be used the store keeps working in
// memory.
type TaskStore struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	mem       *document // non-nil once degraded to memory
	lastWrite []byte
	listeners map[int]Listener
	nextID    int
	timers    map[*time.Timer]struct{}
	watcher   *fsnotify.Watcher
}

// DefaultPath is ~/.config/ytblog/client.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "ytblog-client.yaml"
	}
	return filepath.Join(dir, "ytblog", "client.yaml")
}

// OpenTaskStore uses the file at path. An empty path keeps everything in
// memory.
func OpenTaskStore(path string, logger *slog.Logger) *TaskStore {
	s := &TaskStore{
		path:      path,
		logger:    logger,
		now:       time.Now,
		listeners: make(map[int]Listener),
		timers:    make(map[*time.Timer]struct{}),
	}
	if path == "" {
		s.mem = &document{TaskQueue: map[string]Task{}}
		return s
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		s.degrade(err)
	}
	return s
}

// InMemory reports whether the store lost access to its file.
func (s *TaskStore) InMemory() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mem != nil
}

// Upsert overwrites the task for videoID and stamps the current time.
func (s *TaskStore) Upsert(videoID, title string, status TaskStatus, message string) {
	s.update(func(doc *document) {
		doc.TaskQueue[videoID] = Task{
			Title:     title,
			Status:    status,
			Message:   message,
			Timestamp: s.now().UnixMilli(),
		}
	})
}

// Remove deletes the task for videoID. Missing keys are ignored.
func (s *TaskStore) Remove(videoID string) {
	s.update(func(doc *document) {
		delete(doc.TaskQueue, videoID)
	})
}

// RemoveAfter deletes the task after delay unless it went back to pending
// in the meantime. The deadline is stored with the task, so the removal also
// happens when this process exits first.
func (s *TaskStore) RemoveAfter(videoID string, delay time.Duration) {
	expires := s.now().Add(delay).UnixMilli()
	s.update(func(doc *document) {
		if task, ok := doc.TaskQueue[videoID]; ok && task.Terminal() {
			task.ExpiresAt = expires
			doc.TaskQueue[videoID] = task
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, t)
		s.mu.Unlock()
		s.update(func(doc *document) {
			if task, ok := doc.TaskQueue[videoID]; ok && task.Terminal() {
				delete(doc.TaskQueue, videoID)
			}
		})
	})
	s.timers[t] = struct{}{}
}

// Get returns the task for videoID.
func (s *TaskStore) Get(videoID string) (Task, bool) {
	t, ok := s.Snapshot()[videoID]
	return t, ok
}

// Snapshot returns a copy of the whole queue.
func (s *TaskStore) Snapshot() map[string]Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyQueue(s.load().TaskQueue)
}

// Settings returns the stored connection settings.
func (s *TaskStore) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load().Settings
}

// SaveSettings replaces the stored connection settings.
func (s *TaskStore) SaveSettings(settings Settings) {
	s.update(func(doc *document) {
		doc.Settings = settings
	})
}

// Subscribe registers l for every change of the queue and returns a func
// that removes it.
func (s *TaskStore) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Watch notifies subscribers about writes made by other processes until ctx
// is done.
func (s *TaskStore) Watch(ctx context.Context) error {
	if s.InMemory() {
		return errors.New("task store is not backed by a file")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	// the directory, since atomic replaces swap the file's inode
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(s.path), err)
	}

	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				s.reloadFromDisk()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("task store watcher error", "error", err)
			}
		}
	}()
	return nil
}

// Close stops pending removals and the watcher.
func (s *TaskStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t := range s.timers {
		t.Stop()
	}
	s.timers = map[*time.Timer]struct{}{}
	if s.watcher != nil {
		err := s.watcher.Close()
		s.watcher = nil
		return err
	}
	return nil
}

func (s *TaskStore) reloadFromDisk() {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	if err == nil && bytes.Equal(data, s.lastWrite) {
		s.mu.Unlock()
		return
	}
	queue := copyQueue(s.load().TaskQueue)
	listeners := s.listenerList()
	s.mu.Unlock()

	for _, l := range listeners {
		l(queue)
	}
}

func (s *TaskStore) update(fn func(doc *document)) {
	s.mu.Lock()
	doc := s.load()
	fn(doc)
	s.save(doc)
	queue := copyQueue(doc.TaskQueue)
	listeners := s.listenerList()
	s.mu.Unlock()

	for _, l := range listeners {
		l(queue)
	}
}

// load reads the current document without expired tasks. Callers hold s.mu.
func (s *TaskStore) load() *document {
	doc := s.read()
	now := s.now()
	for id, t := range doc.TaskQueue {
		if t.expired(now) {
			delete(doc.TaskQueue, id)
		}
	}
	return doc
}

func (s *TaskStore) read() *document {
	if s.mem != nil {
		return s.mem
	}
	doc := &document{}
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		s.degrade(err)
		return s.mem
	default:
		if err := yaml.Unmarshal(data, doc); err != nil {
			s.logger.Warn("task store file is corrupt, starting empty", "path", s.path, "error", err)
			doc = &document{}
		}
	}
	if doc.TaskQueue == nil {
		doc.TaskQueue = map[string]Task{}
	}
	return doc
}

// save writes doc through a temp file and rename. Callers hold s.mu.
func (s *TaskStore) save(doc *document) {
	if s.mem != nil {
		s.mem = doc
		return
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		s.degradeWith(doc, err)
		return
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".client-*.yaml")
	if err != nil {
		s.degradeWith(doc, err)
		return
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		s.degradeWith(doc, err)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		s.degradeWith(doc, err)
		return
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		s.degradeWith(doc, err)
		return
	}
	s.lastWrite = data
}

func (s *TaskStore) degrade(err error) {
	s.degradeWith(&document{TaskQueue: map[string]Task{}}, err)
}

func (s *TaskStore) degradeWith(doc *document, err error) {
	if s.mem == nil {
		s.logger.Warn("task store file unavailable, keeping tasks in memory", "path", s.path, "error", err)
	}
	s.mem = doc
}

func (s *TaskStore) listenerList() []Listener {
	list := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		list = append(list, l)
	}
	return list
}

func copyQueue(q map[string]Task) map[string]Task {
	out := make(map[string]Task, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}
