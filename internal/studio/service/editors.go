package service

import (
	"context"
	"sync"
	"time"

	"garment-studio/internal/common/logger"
	"garment-studio/internal/editor"
	"garment-studio/internal/studio/models"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// ============================================================
// Editor Registry
// ============================================================

// Действия, для которых одновременно допускается только один запрос.
const (
	ActionSave   = "save"
	ActionUpload = "upload"
	ActionTryOn  = "tryon"
)

// Editor — рабочая копия проекта на сервере. Поля меняются только внутри
// EditorRegistry.Do.
type Editor struct {
	ID        string
	UserID    string
	Session   *editor.Session
	ProjectID string
	Garment   models.Garment
}

type editorEntry struct {
	mu       sync.Mutex
	editor   *Editor
	lastUsed time.Time
	closed   bool

	guardsMu sync.Mutex
	guards   map[string]*semaphore.Weighted // action -> in-flight guard
}

// EditorRegistry держит открытые сессии редактора. Каждая сессия
// однопоточна: все операции идут под её мьютексом.
type EditorRegistry struct {
	mu      sync.Mutex
	entries map[string]*editorEntry // editor id -> entry
	opts    editor.Options
	garment models.Garment
	ttl     time.Duration
	now     func() time.Time
	log     *logger.Logger
}

func NewEditorRegistry(opts editor.Options, defaultGarment models.Garment, ttl time.Duration, log *logger.Logger) *EditorRegistry {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Logger == nil {
		opts.Logger = log
	}
	return &EditorRegistry{
		entries: make(map[string]*editorEntry),
		opts:    opts,
		garment: defaultGarment,
		ttl:     ttl,
		now:     time.Now,
		log:     log.With("service", "EditorRegistry"),
	}
}

// Open создаёт пустую сессию для пользователя.
func (r *EditorRegistry) Open(userID string) *Editor {
	ed := &Editor{
		ID:      uuid.NewString(),
		UserID:  userID,
		Session: editor.NewSession(r.opts),
		Garment: r.garment,
	}

	r.mu.Lock()
	r.entries[ed.ID] = &editorEntry{
		editor:   ed,
		lastUsed: r.now(),
		guards:   make(map[string]*semaphore.Weighted),
	}
	r.mu.Unlock()

	r.log.Debug("editor opened", "editor_id", ed.ID, "user_id", userID)
	return ed
}

func (r *EditorRegistry) lookup(editorID, userID string) (*editorEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[editorID]
	if !ok {
		return nil, ErrNotFound
	}
	if entry.editor.UserID != userID {
		return nil, ErrForbidden
	}
	entry.lastUsed = r.now()
	return entry, nil
}

// Do выполняет fn под мьютексом сессии. Если сессию закрыли, пока запрос
// ждал своей очереди, возвращается ErrNotFound.
func (r *EditorRegistry) Do(editorID, userID string, fn func(ed *Editor) error) error {
	entry, err := r.lookup(editorID, userID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.closed {
		return ErrNotFound
	}
	return fn(entry.editor)
}

// Guard занимает слот действия. Повторный запрос того же действия, пока
// первый не завершился, получает ErrBusy.
func (r *EditorRegistry) Guard(editorID, userID, action string) (func(), error) {
	entry, err := r.lookup(editorID, userID)
	if err != nil {
		return nil, err
	}

	entry.guardsMu.Lock()
	sem, ok := entry.guards[action]
	if !ok {
		sem = semaphore.NewWeighted(1)
		entry.guards[action] = sem
	}
	entry.guardsMu.Unlock()

	if !sem.TryAcquire(1) {
		return nil, ErrBusy
	}
	return func() { sem.Release(1) }, nil
}

func (r *EditorRegistry) Close(editorID, userID string) error {
	entry, err := r.lookup(editorID, userID)
	if err != nil {
		return err
	}
	r.remove(editorID, entry)
	return nil
}

func (r *EditorRegistry) remove(editorID string, entry *editorEntry) {
	r.mu.Lock()
	delete(r.entries, editorID)
	r.mu.Unlock()

	entry.mu.Lock()
	entry.closed = true
	entry.mu.Unlock()
}

func (r *EditorRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Reap закрывает сессии, не использовавшиеся дольше ttl.
func (r *EditorRegistry) Reap() int {
	if r.ttl <= 0 {
		return 0
	}
	now := r.now()

	r.mu.Lock()
	expired := make(map[string]*editorEntry)
	for id, entry := range r.entries {
		if now.Sub(entry.lastUsed) > r.ttl {
			expired[id] = entry
		}
	}
	r.mu.Unlock()

	for id, entry := range expired {
		r.remove(id, entry)
	}
	if len(expired) > 0 {
		r.log.Info("idle editors closed", "count", len(expired))
	}
	return len(expired)
}

// Run периодически вызывает Reap до отмены ctx.
func (r *EditorRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reap()
		}
	}
}
