package testutil

import (
	"time"

	"github.com/zjrosen/aipq/internal/filter"
	"github.com/zjrosen/aipq/internal/schema"
	"github.com/zjrosen/aipq/internal/value"
)

// UserItem is the user half of a request record.
type UserItem struct {
	ID          string
	DisplayName string
	Age         int64
}

// TaskItem is the task half of a request record.
type TaskItem struct {
	ID        string
	UserID    string
	Content   string
	Deleted   bool
	Priority  int64
	Score     float64
	Tags      []string
	CreatedAt time.Time
}

// RequestItem pairs a task with its owner and resolves "user.*" and "task.*" paths.
type RequestItem struct {
	User UserItem
	Task TaskItem
}

var requestFields = map[string]func(*RequestItem) value.Value{
	"user.id":          func(r *RequestItem) value.Value { return value.String(r.User.ID) },
	"user.displayName": func(r *RequestItem) value.Value { return value.String(r.User.DisplayName) },
	"user.age":         func(r *RequestItem) value.Value { return value.Int(r.User.Age) },
	"task.id":          func(r *RequestItem) value.Value { return value.String(r.Task.ID) },
	"task.userId":      func(r *RequestItem) value.Value { return value.String(r.Task.UserID) },
	"task.content":     func(r *RequestItem) value.Value { return value.String(r.Task.Content) },
	"task.deleted":     func(r *RequestItem) value.Value { return value.Bool(r.Task.Deleted) },
	"task.priority":    func(r *RequestItem) value.Value { return value.Int(r.Task.Priority) },
	"task.score":       func(r *RequestItem) value.Value { return value.Float(r.Task.Score) },
	"task.tags": func(r *RequestItem) value.Value {
		tags := make([]value.Value, len(r.Task.Tags))
		for i, tag := range r.Task.Tags {
			tags[i] = value.String(tag)
		}
		return value.Repeated(tags...)
	},
	"task.createdAt": func(r *RequestItem) value.Value {
		if r.Task.CreatedAt.IsZero() {
			return value.Null()
		}
		return value.Timestamp(r.Task.CreatedAt)
	},
}

// Resolve implements filter.FieldResolver.
func (r *RequestItem) Resolve(path string) (value.Value, bool) {
	get, ok := requestFields[path]
	if !ok {
		return value.Value{}, false
	}
	return get(r), true
}

var _ filter.FieldResolver = (*RequestItem)(nil)

// RequestSchema returns the schema for RequestItem with the builtin functions registered.
func RequestSchema() *schema.Schema {
	s := schema.New().
		WithField("user.id", schema.FieldMemberSchema{Type: value.TypeString, Filterable: true, Orderable: true}).
		WithField("user.displayName", schema.FieldMemberSchema{Type: value.TypeString, Filterable: true, Orderable: true}).
		WithField("user.age", schema.FieldMemberSchema{Type: value.TypeInteger, Filterable: true, Orderable: true}).
		WithField("user.password", schema.FieldMemberSchema{Type: value.TypeString}).
		WithField("task.id", schema.FieldMemberSchema{Type: value.TypeString, Filterable: true, Orderable: true}).
		WithField("task.userId", schema.FieldMemberSchema{Type: value.TypeString, Filterable: true, Orderable: true}).
		WithField("task.content", schema.FieldMemberSchema{Type: value.TypeString, Filterable: true}).
		WithField("task.deleted", schema.FieldMemberSchema{Type: value.TypeBoolean, Filterable: true}).
		WithField("task.priority", schema.FieldMemberSchema{Type: value.TypeInteger, Filterable: true, Orderable: true}).
		WithField("task.score", schema.FieldMemberSchema{Type: value.TypeFloat, Filterable: true, Orderable: true}).
		WithField("task.tags", schema.FieldMemberSchema{Type: value.TypeString, Filterable: true, Repeated: true}).
		WithField("task.createdAt", schema.FieldMemberSchema{Type: value.TypeTimestamp, Filterable: true, Orderable: true})
	filter.Builtins().Register(s)
	return s
}

// Renames maps RequestSchema paths onto the Schema tables joined by FromClause.
func Renames() schema.RenameMap {
	return schema.RenameMap{
		"user":             "u",
		"user.displayName": "display_name",
		"task.userId":      "user_id",
	}
}

// SampleRequest is the record used across evaluator and builder tests.
func SampleRequest() *RequestItem {
	return &RequestItem{
		User: UserItem{ID: "42", DisplayName: "test", Age: 30},
		Task: TaskItem{
			ID:        "t1",
			UserID:    "42",
			Content:   "test",
			Deleted:   true,
			Priority:  1,
			Score:     2.5,
			Tags:      []string{"a", "b", "c"},
			CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		},
	}
}
