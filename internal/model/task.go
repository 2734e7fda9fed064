package model

// Task - запись домашнего задания
type Task struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	DueDate   Date   `json:"due_date"`
	Completed bool   `json:"completed"`
	// Seq - порядковый номер создания, назначается хранилищем
	Seq int64 `json:"-"`
}
