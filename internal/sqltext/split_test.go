package sqltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		expected []string
	}{
		{
			name:     "single statement",
			sql:      "SELECT * FROM users",
			expected: []string{"SELECT * FROM users"},
		},
		{
			name:     "multiple statements",
			sql:      "CREATE TABLE users (id INT); INSERT INTO users VALUES (1);",
			expected: []string{"CREATE TABLE users (id INT)", "INSERT INTO users VALUES (1)"},
		},
		{
			name:     "semicolon in string",
			sql:      "INSERT INTO t VALUES ('a;b'); SELECT 1",
			expected: []string{"INSERT INTO t VALUES ('a;b')", "SELECT 1"},
		},
		{
			name:     "doubled quote escape",
			sql:      "SELECT 'it''s; fine'; SELECT 2",
			expected: []string{"SELECT 'it''s; fine'", "SELECT 2"},
		},
		{
			name:     "empty statements dropped",
			sql:      "SELECT 1;;;SELECT 2;",
			expected: []string{"SELECT 1", "SELECT 2"},
		},
		{
			name: "comments",
			sql: `-- header; with semicolon
CREATE TABLE a (x INT); /* block; comment */
-- trailing comment only`,
			expected: []string{"-- header; with semicolon\nCREATE TABLE a (x INT)"},
		},
		{
			name:     "dollar block",
			sql:      "CREATE FUNCTION f() RETURNS INT AS $$ 1; $$; SELECT f()",
			expected: []string{"CREATE FUNCTION f() RETURNS INT AS $$ 1; $$", "SELECT f()"},
		},
		{
			name:     "quoted identifier",
			sql:      `SELECT "a;b" FROM t; SELECT 2`,
			expected: []string{`SELECT "a;b" FROM t`, "SELECT 2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Split(tt.sql))
		})
	}
}

func TestStripComments(t *testing.T) {
	in := "SELECT 1 -- one\n, '--not a comment' /* gone */ FROM t"
	out := StripComments(in)
	assert.NotContains(t, out, "one")
	assert.NotContains(t, out, "gone")
	assert.Contains(t, out, "'--not a comment'")
}

func TestNormalize(t *testing.T) {
	in := "create or replace\n  dynamic table x\n\ttarget_lag = '60 minutes' -- lag\n"
	assert.Equal(t, "CREATE OR REPLACE DYNAMIC TABLE X TARGET_LAG = '60 minutes'", Normalize(in))
}
