package testutil

// TaskOption configures a task inserted by the Builder.
type TaskOption func(*TaskItem)

func defaultTask(id, userID string) TaskItem {
	return TaskItem{
		ID:       id,
		UserID:   userID,
		Content:  id, // default content is ID
		Priority: 2,
		Tags:     []string{},
	}
}

// Content sets the task content.
func Content(c string) TaskOption {
	return func(t *TaskItem) { t.Content = c }
}

// Deleted marks the task deleted.
func Deleted() TaskOption {
	return func(t *TaskItem) { t.Deleted = true }
}

// Priority sets the task priority.
func Priority(p int64) TaskOption {
	return func(t *TaskItem) { t.Priority = p }
}

// Score sets the task score.
func Score(s float64) TaskOption {
	return func(t *TaskItem) { t.Score = s }
}

// Tags sets the task tags.
func Tags(tags ...string) TaskOption {
	return func(t *TaskItem) { t.Tags = tags }
}
