package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/homework-sync/internal/model"
)

// Record - сохраняемая форма задания, ключ - ID
type Record struct {
	Text      string     `json:"text"`
	DueDate   model.Date `json:"due_date"`
	Completed bool       `json:"completed"`
	Seq       int64      `json:"seq"`
}

// Storage сохраняет все записи целиком при каждом изменении
type Storage interface {
	Load() (map[string]Record, error)
	Save(records map[string]Record) error
}

// Watcher сообщает об изменениях, сделанных в обход LocalStore
type Watcher interface {
	Watch(ctx context.Context, changed func()) error
}

// LocalStore - синхронное хранилище одного процесса. Подписчики получают
// уведомление до возврата из Create/SetCompleted/Delete. Слушатель не должен
// синхронно вызывать методы хранилища.
type LocalStore struct {
	mu      sync.Mutex
	storage Storage
	logger  *zap.Logger
	records map[string]Record
	seq     int64
	subs    registry[Listener]
}

func NewLocalStore(storage Storage, logger *zap.Logger) (*LocalStore, error) {
	records, err := storage.Load()
	if err != nil {
		return nil, fmt.Errorf("load homework: %w", err)
	}
	if records == nil {
		records = make(map[string]Record)
	}
	return &LocalStore{
		storage: storage,
		logger:  logger,
		records: records,
		seq:     maxSeq(records),
	}, nil
}

func (s *LocalStore) Create(text string, due model.Date) (string, error) {
	text, err := ValidateText(text)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	next := maps.Clone(s.records)
	next[id] = Record{Text: text, DueDate: due, Seq: s.seq + 1}
	if err := s.commit(next); err != nil {
		return "", err
	}
	s.seq++

	s.logger.Debug("homework created", zap.String("id", id), zap.String("due", due.String()))
	s.notify()
	return id, nil
}

func (s *LocalStore) SetCompleted(id string, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("homework %s: %w", id, ErrNotFound)
	}
	rec.Completed = completed

	next := maps.Clone(s.records)
	next[id] = rec
	if err := s.commit(next); err != nil {
		return err
	}

	s.notify()
	return nil
}

func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return nil
	}

	next := maps.Clone(s.records)
	delete(next, id)
	if err := s.commit(next); err != nil {
		return err
	}

	s.logger.Debug("homework deleted", zap.String("id", id))
	s.notify()
	return nil
}

// Subscribe сразу отдает слушателю текущий набор
func (s *LocalStore) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, unsubscribe := s.subs.add(l)
	l(s.snapshot())
	return unsubscribe
}

// Reload перечитывает хранилище и уведомляет подписчиков, если набор изменился
func (s *LocalStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.storage.Load()
	if err != nil {
		return fmt.Errorf("reload homework: %w", err)
	}
	if records == nil {
		records = make(map[string]Record)
	}
	if maps.Equal(records, s.records) {
		return nil
	}

	s.records = records
	if seq := maxSeq(records); seq > s.seq {
		s.seq = seq
	}
	s.logger.Info("homework reloaded from storage", zap.Int("count", len(records)))
	s.notify()
	return nil
}

// Watch блокируется до отмены ctx, перечитывая хранилище при внешних изменениях
func (s *LocalStore) Watch(ctx context.Context) error {
	w, ok := s.storage.(Watcher)
	if !ok {
		return errors.New("storage does not support watching")
	}
	return w.Watch(ctx, func() {
		if err := s.Reload(); err != nil {
			s.logger.Warn("failed to reload homework", zap.Error(err))
		}
	})
}

func (s *LocalStore) commit(next map[string]Record) error {
	if err := s.storage.Save(next); err != nil {
		return fmt.Errorf("save homework: %w", err)
	}
	s.records = next
	return nil
}

func (s *LocalStore) notify() {
	s.subs.each(func(l Listener) {
		l(s.snapshot())
	})
}

func (s *LocalStore) snapshot() []model.Task {
	tasks := make([]model.Task, 0, len(s.records))
	for id, rec := range s.records {
		tasks = append(tasks, model.Task{
			ID:        id,
			Text:      rec.Text,
			DueDate:   rec.DueDate,
			Completed: rec.Completed,
			Seq:       rec.Seq,
		})
	}
	slices.SortFunc(tasks, func(a, b model.Task) int {
		return cmp.Or(cmp.Compare(a.Seq, b.Seq), cmp.Compare(a.ID, b.ID))
	})
	return tasks
}

func maxSeq(records map[string]Record) int64 {
	var seq int64
	for _, rec := range records {
		seq = max(seq, rec.Seq)
	}
	return seq
}
