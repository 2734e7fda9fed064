package controller

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/homework-sync/internal/model"
)

func task(id string, completed bool, due string, seq int64) model.Task {
	return model.Task{ID: id, Text: "text " + id, DueDate: model.MustParseDate(due), Completed: completed, Seq: seq}
}

func ids(tasks []model.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func permutations(tasks []model.Task) [][]model.Task {
	if len(tasks) <= 1 {
		return [][]model.Task{slices.Clone(tasks)}
	}
	var out [][]model.Task
	for i := range tasks {
		rest := slices.Concat(tasks[:i:i], tasks[i+1:])
		for _, p := range permutations(rest) {
			out = append(out, append([]model.Task{tasks[i]}, p...))
		}
	}
	return out
}

func TestView_NotReadyBeforeFirstSnapshot(t *testing.T) {
	v := NewView()
	assert.False(t, v.Ready())
	assert.Nil(t, v.Tasks())

	v.Replace(nil)
	assert.True(t, v.Ready())
	assert.NotNil(t, v.Tasks())
	assert.Empty(t, v.Tasks())
}

func TestView_ConcreteScenario(t *testing.T) {
	a := task("A", false, "2025-01-01", 0)
	b := task("B", false, "", 0)
	c := task("C", true, "2024-01-01", 0)

	for _, creation := range permutations([]model.Task{a, b, c}) {
		// Seq следует порядку создания
		for i := range creation {
			creation[i].Seq = int64(i + 1)
		}
		v := NewView()
		v.Replace(creation)
		assert.Equal(t, []string{"A", "B", "C"}, ids(v.Tasks()), "creation order %v", ids(creation))
	}
}

func TestView_OrderingTotality(t *testing.T) {
	records := []model.Task{
		task("done-late", true, "2025-09-01", 1),
		task("open-none", false, "", 2),
		task("open-early", false, "2025-01-10", 3),
		task("done-none", true, "", 4),
		task("open-mid", false, "2025-03-01", 5),
		task("done-early", true, "2024-12-01", 6),
	}
	want := []string{"open-early", "open-mid", "open-none", "done-early", "done-late", "done-none"}

	for _, input := range permutations(records) {
		v := NewView()
		v.Replace(input)
		if diff := cmp.Diff(want, ids(v.Tasks())); diff != "" {
			t.Fatalf("order mismatch for input %v (-want +got):\n%s", ids(input), diff)
		}

		// идемпотентность
		v.Replace(input)
		require.Equal(t, want, ids(v.Tasks()))
	}
}

func TestView_StabilityByArrival(t *testing.T) {
	base := []model.Task{
		task("x", false, "2025-05-05", 0),
		task("y", false, "2025-05-05", 0),
		task("z", false, "2025-05-05", 0),
	}

	for _, arrival := range permutations(base) {
		v := NewView()
		var seen []model.Task
		// по одной записи за снимок, как приходят уведомления после create
		for _, rec := range arrival {
			seen = append(seen, rec)
			v.Replace(slices.Clone(seen))
		}
		assert.Equal(t, ids(arrival), ids(v.Tasks()))

		// перемешанный вход не меняет порядок уже известных записей
		shuffled := slices.Clone(seen)
		slices.Reverse(shuffled)
		v.Replace(shuffled)
		assert.Equal(t, ids(arrival), ids(v.Tasks()))
	}
}

func TestView_StabilityWithoutDates(t *testing.T) {
	v := NewView()
	first := task("first", false, "", 1)
	second := task("second", false, "", 2)

	v.Replace([]model.Task{second, first})
	assert.Equal(t, []string{"first", "second"}, ids(v.Tasks()), "same snapshot ranks by store sequence")
}

func TestView_NeverComparesByID(t *testing.T) {
	v := NewView()
	v.Replace([]model.Task{task("zzz", false, "", 1)})
	v.Replace([]model.Task{task("zzz", false, "", 1), task("aaa", false, "", 2)})
	assert.Equal(t, []string{"zzz", "aaa"}, ids(v.Tasks()))
}

func TestView_ToggleMovesAndReturns(t *testing.T) {
	v := NewView()
	a := task("a", false, "2025-01-01", 1)
	b := task("b", false, "2025-01-01", 2)
	v.Replace([]model.Task{a, b})

	a.Completed = true
	assert.True(t, v.Replace([]model.Task{a, b}), "single change should splice")
	assert.Equal(t, []string{"b", "a"}, ids(v.Tasks()))

	a.Completed = false
	v.Replace([]model.Task{a, b})
	assert.Equal(t, []string{"a", "b"}, ids(v.Tasks()), "arrival rank survives toggling")
}

func TestView_DuplicateIDsDropped(t *testing.T) {
	v := NewView()
	v.Replace([]model.Task{task("a", false, "", 1), task("a", true, "", 1)})
	require.Equal(t, 1, v.Len())
	got, ok := v.Lookup("a")
	require.True(t, ok)
	assert.False(t, got.Completed)
}

func TestView_DeletedIDGetsFreshRank(t *testing.T) {
	v := NewView()
	a := task("a", false, "", 1)
	b := task("b", false, "", 2)
	v.Replace([]model.Task{a, b})
	v.Replace([]model.Task{b})
	v.Replace([]model.Task{b, a})
	assert.Equal(t, []string{"b", "a"}, ids(v.Tasks()))
}

// Вставка на место должна давать тот же порядок, что и полная сортировка
func TestView_SpliceMatchesFullSort(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	dates := []string{"", "2025-01-01", "2025-01-02", "2025-02-01", "2024-12-31"}

	spliced := NewView()
	current := map[string]model.Task{}
	var order []string
	var seq int64

	snapshot := func() []model.Task {
		out := make([]model.Task, 0, len(order))
		for _, id := range order {
			out = append(out, current[id])
		}
		rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out
	}

	for step := 0; step < 500; step++ {
		switch op := rng.IntN(3); {
		case op == 0 || len(order) == 0:
			seq++
			id := fmt.Sprintf("t%d", seq)
			current[id] = task(id, false, dates[rng.IntN(len(dates))], seq)
			order = append(order, id)
		case op == 1:
			id := order[rng.IntN(len(order))]
			t := current[id]
			t.Completed = !t.Completed
			current[id] = t
		default:
			i := rng.IntN(len(order))
			delete(current, order[i])
			order = slices.Delete(order, i, i+1)
		}

		snap := snapshot()
		spliced.Replace(snap)

		// эталон: запись за записью в порядке создания, затем полная сортировка
		reference := make([]entry, 0, len(order))
		for i, id := range order {
			reference = append(reference, entry{task: current[id], rank: uint64(i)})
		}
		slices.SortFunc(reference, compareEntries)
		want := make([]string, len(reference))
		for i, e := range reference {
			want[i] = e.task.ID
		}

		if diff := cmp.Diff(want, ids(spliced.Tasks())); diff != "" {
			t.Fatalf("step %d (-want +got):\n%s", step, diff)
		}
	}
}

func TestView_Upsert(t *testing.T) {
	v := NewView()
	v.Upsert(task("b", false, "", 0))
	v.Upsert(task("a", false, "2025-01-01", 0))
	v.Upsert(task("c", true, "2020-01-01", 0))
	assert.True(t, v.Ready())
	assert.Equal(t, []string{"a", "b", "c"}, ids(v.Tasks()))

	v.Remove("a")
	v.Remove("missing")
	assert.Equal(t, []string{"b", "c"}, ids(v.Tasks()))
}
