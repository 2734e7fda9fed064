package handler

import (
	"sync"

	"github.com/BuzzLyutic/homework-sync/internal/model"
)

// Screen - то, что сейчас видит пользователь: последний отрисованный список
// и последнее уведомление
type Screen struct {
	mu     sync.Mutex
	tasks  []model.Task
	ready  bool
	notice string
}

func NewScreen() *Screen {
	return &Screen{}
}

func (s *Screen) Render(tasks []model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = tasks
	s.ready = true
}

func (s *Screen) Notice(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = msg
}

type ScreenState struct {
	Ready  bool         `json:"ready"`
	Items  []model.Task `json:"items"`
	Notice string       `json:"notice,omitempty"`
}

// Take возвращает состояние и сбрасывает уведомление: оно показывается один раз
func (s *Screen) Take() ScreenState {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]model.Task, len(s.tasks))
	copy(items, s.tasks)
	state := ScreenState{Ready: s.ready, Items: items, Notice: s.notice}
	s.notice = ""
	return state
}
