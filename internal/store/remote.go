package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/homework-sync/internal/model"
	"github.com/BuzzLyutic/homework-sync/internal/worker"
)

// Backend - общее хранилище, разделенное на пространства имен.
// Listen блокируется до отмены ctx или обрыва соединения и вызывает changed
// один раз сразу после подписки, затем на каждое изменение в namespace.
type Backend interface {
	Insert(ctx context.Context, namespace string, task model.Task) error
	SetCompleted(ctx context.Context, namespace, id string, completed bool) error
	Delete(ctx context.Context, namespace, id string) error
	List(ctx context.Context, namespace string) ([]model.Task, error)
	Listen(ctx context.Context, namespace string, changed func()) error
}

// Dispatcher выполняет записи асинхронно; *worker.Pool подходит
type Dispatcher interface {
	Submit(job worker.Job) error
}

const (
	defaultReconnectDelay = 2 * time.Second
	defaultWriteTimeout   = 10 * time.Second
)

type RemoteOption func(*RemoteStore)

func WithReconnectDelay(d time.Duration) RemoteOption {
	return func(s *RemoteStore) {
		if d > 0 {
			s.reconnectDelay = d
		}
	}
}

func WithWriteTimeout(d time.Duration) RemoteOption {
	return func(s *RemoteStore) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// RemoteStore - общий список нескольких клиентов. Записи не ждут бэкенд:
// они уходят в Dispatcher, а итоговое состояние приходит подписчикам
// следующим снимком. Конфликты не сливаются, побеждает последняя запись.
type RemoteStore struct {
	backend        Backend
	namespace      string
	writes         Dispatcher
	logger         *zap.Logger
	reconnectDelay time.Duration
	writeTimeout   time.Duration

	subs     registry[Listener]
	failures registry[func(error)]
	refresh  chan struct{}

	mu      sync.Mutex
	running bool
}

func NewRemoteStore(backend Backend, namespace string, writes Dispatcher, logger *zap.Logger, opts ...RemoteOption) *RemoteStore {
	s := &RemoteStore{
		backend:        backend,
		namespace:      namespace,
		writes:         writes,
		logger:         logger.With(zap.String("namespace", namespace)),
		reconnectDelay: defaultReconnectDelay,
		writeTimeout:   defaultWriteTimeout,
		refresh:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create возвращает ID сразу; сама вставка выполняется в фоне
func (s *RemoteStore) Create(text string, due model.Date) (string, error) {
	text, err := ValidateText(text)
	if err != nil {
		return "", err
	}

	task := model.Task{ID: uuid.NewString(), Text: text, DueDate: due}
	err = s.submit("create", task.ID, func(ctx context.Context) error {
		return s.backend.Insert(ctx, s.namespace, task)
	})
	if err != nil {
		return "", err
	}
	return task.ID, nil
}

func (s *RemoteStore) SetCompleted(id string, completed bool) error {
	return s.submit("set_completed", id, func(ctx context.Context) error {
		return s.backend.SetCompleted(ctx, s.namespace, id, completed)
	})
}

func (s *RemoteStore) Delete(id string) error {
	return s.submit("delete", id, func(ctx context.Context) error {
		err := s.backend.Delete(ctx, s.namespace, id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	})
}

// Subscribe регистрирует слушателя и запрашивает свежий снимок.
// Снимок приходит из цикла Run, а не из вызывающей горутины.
func (s *RemoteStore) Subscribe(l Listener) func() {
	_, unsubscribe := s.subs.add(l)
	s.requestRefresh()
	return unsubscribe
}

// OnFailure регистрирует обработчик асинхронных ошибок записи и подписки
func (s *RemoteStore) OnFailure(fn func(error)) func() {
	_, unsubscribe := s.failures.add(fn)
	return unsubscribe
}

// Run слушает бэкенд и рассылает снимки, пока не отменен ctx
func (s *RemoteStore) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("remote store already running")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.listen(ctx)
	}()

	s.logger.Info("remote store started")
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			s.logger.Info("remote store stopped")
			return nil
		case <-s.refresh:
			s.deliver(ctx)
		}
	}
}

func (s *RemoteStore) listen(ctx context.Context) {
	for {
		err := s.backend.Listen(ctx, s.namespace, s.requestRefresh)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("listener closed")
		}
		s.logger.Warn("lost backend subscription", zap.Error(err), zap.Duration("retry_in", s.reconnectDelay))
		s.fail(fmt.Errorf("%w: listen: %v", ErrTransport, err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *RemoteStore) deliver(ctx context.Context) {
	if s.subs.len() == 0 {
		return
	}

	listCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	tasks, err := s.backend.List(listCtx, s.namespace)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("failed to read homework", zap.Error(err))
		s.fail(fmt.Errorf("%w: list: %v", ErrTransport, err))
		return
	}

	s.subs.each(func(l Listener) {
		l(cloneTasks(tasks))
	})
}

func (s *RemoteStore) requestRefresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

func (s *RemoteStore) submit(name, id string, run func(ctx context.Context) error) error {
	job := worker.Job{
		Name: name,
		Key:  id,
		Run: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
			defer cancel()

			err := run(ctx)
			switch {
			case err == nil:
			case errors.Is(err, ErrNotFound):
				s.fail(fmt.Errorf("%s %s: %w", name, id, err))
			default:
				s.fail(fmt.Errorf("%w: %s %s: %v", ErrTransport, name, id, err))
			}
			return err
		},
	}

	if err := s.writes.Submit(job); err != nil {
		s.logger.Warn("write rejected", zap.String("op", name), zap.String("id", id), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return nil
}

func (s *RemoteStore) fail(err error) {
	s.failures.each(func(fn func(error)) {
		fn(err)
	})
}
