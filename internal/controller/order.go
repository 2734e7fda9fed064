package controller

import (
	"cmp"

	"github.com/BuzzLyutic/homework-sync/internal/model"
)

// Compare упорядочивает задания по правилу списка без учета порядка
// поступления: сначала невыполненные, затем по сроку, без срока в конце.
func Compare(a, b model.Task) int {
	if a.Completed != b.Completed {
		if !a.Completed {
			return -1
		}
		return 1
	}
	return a.DueDate.Compare(b.DueDate)
}

type entry struct {
	task model.Task
	// rank - порядок поступления ID в представление
	rank uint64
}

// compareEntries - полный порядок: ранги уникальны, равных элементов нет
func compareEntries(a, b entry) int {
	return cmp.Or(Compare(a.task, b.task), cmp.Compare(a.rank, b.rank))
}

// insertPosition находит место линейным проходом
func insertPosition(entries []entry, e entry) int {
	for i := range entries {
		if compareEntries(e, entries[i]) < 0 {
			return i
		}
	}
	return len(entries)
}
