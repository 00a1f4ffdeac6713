package testutil

import (
	"database/sql"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
)

// Builder accumulates users and tasks and inserts them in dependency order.
type Builder struct {
	t     *testing.T
	db    *sql.DB
	users []UserItem
	tasks []TaskItem
}

// NewBuilder creates a builder for the given test database.
func NewBuilder(t *testing.T, db *sql.DB) *Builder {
	t.Helper()
	return &Builder{t: t, db: db}
}

// WithUser adds a user.
func (b *Builder) WithUser(id, displayName string, age int64) *Builder {
	b.users = append(b.users, UserItem{ID: id, DisplayName: displayName, Age: age})
	return b
}

// WithTask adds a task owned by userID with optional configuration.
func (b *Builder) WithTask(id, userID string, opts ...TaskOption) *Builder {
	task := defaultTask(id, userID)
	for _, opt := range opts {
		opt(&task)
	}
	b.tasks = append(b.tasks, task)
	return b
}

// Build inserts all accumulated data into the database.
func (b *Builder) Build() {
	b.t.Helper()
	for _, u := range b.users {
		_, err := b.db.Exec(`INSERT INTO users (id, display_name, age) VALUES (?, ?, ?)`, u.ID, u.DisplayName, u.Age)
		require.NoError(b.t, err)
	}
	for _, task := range b.tasks {
		tags, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(task.Tags)
		require.NoError(b.t, err)
		_, err = b.db.Exec(
			`INSERT INTO tasks (id, user_id, content, deleted, priority, score, tags) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			task.ID, task.UserID, task.Content, task.Deleted, task.Priority, task.Score, string(tags),
		)
		require.NoError(b.t, err)
	}
}

// Requests returns the accumulated data joined as RequestItems, in task insertion order.
func (b *Builder) Requests() []*RequestItem {
	users := make(map[string]UserItem, len(b.users))
	for _, u := range b.users {
		users[u.ID] = u
	}
	out := make([]*RequestItem, 0, len(b.tasks))
	for _, task := range b.tasks {
		out = append(out, &RequestItem{User: users[task.UserID], Task: task})
	}
	return out
}
