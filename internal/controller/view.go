package controller

import (
	"cmp"
	"slices"

	"github.com/BuzzLyutic/homework-sync/internal/model"
)

// View - упорядоченный кэш списка, которым владеет один контроллер.
// Не потокобезопасен: синхронизацию обеспечивает владелец.
type View struct {
	entries  []entry
	ranks    map[string]uint64
	nextRank uint64
	ready    bool
}

func NewView() *View {
	return &View{ranks: make(map[string]uint64)}
}

// Ready сообщает, приходил ли хотя бы один снимок
func (v *View) Ready() bool {
	return v.ready
}

func (v *View) Len() int {
	return len(v.entries)
}

func (v *View) Tasks() []model.Task {
	if !v.ready {
		return nil
	}
	tasks := make([]model.Task, len(v.entries))
	for i, e := range v.entries {
		tasks[i] = e.task
	}
	return tasks
}

func (v *View) Lookup(id string) (model.Task, bool) {
	if i := v.index(id); i >= 0 {
		return v.entries[i].task, true
	}
	return model.Task{}, false
}

// Replace заменяет содержимое снимком. Если снимок отличается от текущего
// ровно одной записью, она переставляется на место без полной сортировки;
// результат совпадает с полной сортировкой. Повторы ID в снимке отбрасываются.
func (v *View) Replace(records []model.Task) (spliced bool) {
	incoming := make(map[string]model.Task, len(records))
	unique := make([]model.Task, 0, len(records))
	for _, t := range records {
		if _, dup := incoming[t.ID]; dup {
			continue
		}
		incoming[t.ID] = t
		unique = append(unique, t)
	}

	v.assignRanks(unique)

	if v.ready {
		if id, ok := v.singleChange(incoming); ok {
			if t, present := incoming[id]; present {
				v.Upsert(t)
			} else {
				v.Remove(id)
			}
			v.pruneRanks(incoming)
			return true
		}
	}

	v.entries = v.entries[:0]
	for _, t := range unique {
		v.entries = append(v.entries, entry{task: t, rank: v.ranks[t.ID]})
	}
	slices.SortFunc(v.entries, compareEntries)
	v.pruneRanks(incoming)
	v.ready = true
	return false
}

// Upsert вставляет или обновляет одну запись на ее место в порядке
func (v *View) Upsert(t model.Task) {
	if i := v.index(t.ID); i >= 0 {
		v.entries = slices.Delete(v.entries, i, i+1)
	}
	rank, ok := v.ranks[t.ID]
	if !ok {
		v.nextRank++
		rank = v.nextRank
		v.ranks[t.ID] = rank
	}
	e := entry{task: t, rank: rank}
	v.entries = slices.Insert(v.entries, insertPosition(v.entries, e), e)
	v.ready = true
}

func (v *View) Remove(id string) {
	if i := v.index(id); i >= 0 {
		v.entries = slices.Delete(v.entries, i, i+1)
	}
	delete(v.ranks, id)
}

// assignRanks выдает ранги новым ID: впервые увиденные в одном снимке
// упорядочиваются по Seq хранилища, затем по позиции во входе.
func (v *View) assignRanks(tasks []model.Task) {
	type fresh struct {
		task model.Task
		pos  int
	}
	var news []fresh
	for i, t := range tasks {
		if _, ok := v.ranks[t.ID]; !ok {
			news = append(news, fresh{task: t, pos: i})
		}
	}
	slices.SortFunc(news, func(a, b fresh) int {
		return cmp.Or(cmp.Compare(a.task.Seq, b.task.Seq), cmp.Compare(a.pos, b.pos))
	})
	for _, n := range news {
		v.nextRank++
		v.ranks[n.task.ID] = v.nextRank
	}
}

func (v *View) pruneRanks(incoming map[string]model.Task) {
	for id := range v.ranks {
		if _, ok := incoming[id]; !ok {
			delete(v.ranks, id)
		}
	}
}

// singleChange возвращает ID, если снимок отличается ровно одной записью
func (v *View) singleChange(incoming map[string]model.Task) (string, bool) {
	var (
		changed string
		diffs   int
	)
	current := make(map[string]struct{}, len(v.entries))
	for _, e := range v.entries {
		current[e.task.ID] = struct{}{}
		t, ok := incoming[e.task.ID]
		if !ok || t != e.task {
			changed = e.task.ID
			diffs++
		}
	}
	for id := range incoming {
		if _, ok := current[id]; !ok {
			changed = id
			diffs++
		}
	}
	return changed, diffs == 1
}

func (v *View) index(id string) int {
	return slices.IndexFunc(v.entries, func(e entry) bool { return e.task.ID == id })
}
