package controller

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/homework-sync/internal/model"
	"github.com/BuzzLyutic/homework-sync/internal/store"
)

// NoticeNotSaved показывается пользователю при сбое хранилища
const NoticeNotSaved = "changes may not be saved"

// Renderer - слой отображения: рисует упорядоченный список и показывает уведомления
type Renderer interface {
	Render(tasks []model.Task)
	Notice(msg string)
}

// ListController держит упорядоченное представление списка и переводит
// действия пользователя в вызовы Store. Представление меняется только по
// уведомлениям хранилища, без предварительных вставок.
type ListController struct {
	store    store.Store
	renderer Renderer
	logger   *zap.Logger

	mu   sync.Mutex
	view *View

	subMu       sync.Mutex
	unsubscribe func()
}

func New(st store.Store, view *View, renderer Renderer, logger *zap.Logger) *ListController {
	if view == nil {
		view = NewView()
	}
	return &ListController{
		store:    st,
		renderer: renderer,
		logger:   logger,
		view:     view,
	}
}

// Start подписывает контроллер на хранилище. Локальное хранилище
// присылает первый снимок до возврата из Start.
func (c *ListController) Start() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.unsubscribe != nil {
		return
	}
	c.unsubscribe = c.store.Subscribe(c.OnSnapshot)
}

func (c *ListController) Stop() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

// OnSnapshot заменяет представление полным набором и перерисовывает список
func (c *ListController) OnSnapshot(records []model.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()

	spliced := c.view.Replace(records)
	tasks := c.view.Tasks()
	c.logger.Debug("snapshot applied",
		zap.Int("count", len(tasks)),
		zap.Bool("spliced", spliced),
	)
	c.renderer.Render(tasks)
}

func (c *ListController) OnUserAdd(text string, due model.Date) (string, error) {
	text, err := store.ValidateText(text)
	if err != nil {
		return "", err
	}

	id, err := c.store.Create(text, due)
	if err != nil {
		c.writeFailed("create", "", err)
		return "", err
	}
	c.logger.Info("homework added", zap.String("id", id))
	return id, nil
}

func (c *ListController) OnUserToggle(id string) error {
	c.mu.Lock()
	task, ok := c.view.Lookup(id)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("homework %s: %w", id, store.ErrNotFound)
	}

	err := c.store.SetCompleted(id, !task.Completed)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		// удалено другим клиентом, следующий снимок это покажет
		c.logger.Info("toggle target vanished", zap.String("id", id))
		return nil
	default:
		c.writeFailed("set_completed", id, err)
		return err
	}
}

func (c *ListController) OnUserDelete(id string) error {
	if err := c.store.Delete(id); err != nil {
		c.writeFailed("delete", id, err)
		return err
	}
	return nil
}

// ReportFailure принимает асинхронные ошибки хранилища. Текущее
// представление остается последним удачным снимком.
func (c *ListController) ReportFailure(err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.logger.Debug("store write raced with delete", zap.Error(err))
		return
	}
	c.logger.Warn("store failure", zap.Error(err))
	c.renderer.Notice(NoticeNotSaved)
}

func (c *ListController) Tasks() []model.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.Tasks()
}

func (c *ListController) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.Ready()
}

func (c *ListController) writeFailed(op, id string, err error) {
	c.logger.Warn("store write failed",
		zap.String("op", op),
		zap.String("id", id),
		zap.Error(err),
	)
	c.renderer.Notice(NoticeNotSaved)
}
