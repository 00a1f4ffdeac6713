// Package testutil provides shared fixtures: the user/task request schema,
// record types with accessor tables, and an in-memory SQLite database.
package testutil

import (
	"database/sql"
	"testing"

	jsoniter "github.com/json-iterator/go"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/require"
)

// Schema is the SQLite layout backing the request fixtures. Column names
// follow the Renames map; tags is a JSON array.
const Schema = `
CREATE TABLE users (
	id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	age INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE tasks (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	deleted INTEGER NOT NULL DEFAULT 0,
	priority INTEGER NOT NULL DEFAULT 2,
	score REAL NOT NULL DEFAULT 0,
	tags TEXT NOT NULL DEFAULT '[]',
	FOREIGN KEY (user_id) REFERENCES users(id)
);
`

// FromClause joins tasks to their owners under the aliases the rename map produces.
const FromClause = `tasks AS "task" JOIN users AS "u" ON "u"."id" = "task"."user_id"`

// NewTestDB creates an in-memory SQLite database with the fixture schema.
// The caller is responsible for closing the database.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// one connection so every query sees the same in-memory database
	db.SetMaxOpenConns(1)
	_, err = db.Exec(Schema)
	require.NoError(t, err)
	return db
}

// RequestColumns selects the columns ScanRequests expects, in order.
var RequestColumns = []string{
	`"u"."id"`, `"u"."display_name"`, `"u"."age"`,
	`"task"."id"`, `"task"."user_id"`, `"task"."content"`, `"task"."deleted"`,
	`"task"."priority"`, `"task"."score"`, `"task"."tags"`,
}

// ScanRequests reads rows selected with RequestColumns and closes them.
func ScanRequests(t *testing.T, rows *sql.Rows) []*RequestItem {
	t.Helper()
	defer func() { _ = rows.Close() }()

	var out []*RequestItem
	for rows.Next() {
		var r RequestItem
		var tags string
		err := rows.Scan(&r.User.ID, &r.User.DisplayName, &r.User.Age,
			&r.Task.ID, &r.Task.UserID, &r.Task.Content, &r.Task.Deleted,
			&r.Task.Priority, &r.Task.Score, &tags)
		require.NoError(t, err)
		require.NoError(t, jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(tags, &r.Task.Tags))
		out = append(out, &r)
	}
	require.NoError(t, rows.Err())
	return out
}
