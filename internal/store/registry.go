package store

import (
	"slices"
	"sync"
)

// registry хранит подписчиков; нулевое значение готово к работе
type registry[T any] struct {
	mu    sync.Mutex
	next  uint64
	items map[uint64]T
}

func (r *registry[T]) add(item T) (uint64, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.items == nil {
		r.items = make(map[uint64]T)
	}
	r.next++
	id := r.next
	r.items[id] = item

	var once sync.Once
	return id, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.items, id)
			r.mu.Unlock()
		})
	}
}

func (r *registry[T]) get(id uint64) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	return item, ok
}

func (r *registry[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// each вызывает fn в порядке регистрации без удержания блокировки.
// Отписанный во время обхода элемент больше не вызывается.
func (r *registry[T]) each(fn func(T)) {
	r.mu.Lock()
	ids := make([]uint64, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	slices.Sort(ids)

	for _, id := range ids {
		if item, ok := r.get(id); ok {
			fn(item)
		}
	}
}
