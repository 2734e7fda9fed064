package store

import (
	"errors"
	"strings"

	"github.com/BuzzLyutic/homework-sync/internal/model"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrTransport  = errors.New("transport error")
)

// Listener получает полный текущий набор записей после каждого изменения.
// Порядок записей в срезе не определен.
type Listener func(snapshot []model.Task)

// Store определяет интерфейс хранилища домашних заданий
type Store interface {
	Create(text string, due model.Date) (string, error)
	SetCompleted(id string, completed bool) error
	Delete(id string) error
	Subscribe(l Listener) (unsubscribe func())
}

// ValidateText обрезает пробелы и отклоняет пустой текст
func ValidateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrValidation
	}
	return text, nil
}

func cloneTasks(tasks []model.Task) []model.Task {
	out := make([]model.Task, len(tasks))
	copy(out, tasks)
	return out
}
