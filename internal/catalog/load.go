package catalog

import (
	"regexp"
	"strings"

	"snowbank/internal/sqltext"
)

var (
	copyRe = regexp.MustCompile(`\bCOPY INTO (` + identifier + `)(?: \(([^)]*)\))? FROM ` +
		`(?:\( ?SELECT (.+?) FROM @(` + identifier + `) ?\)|@(` + identifier + `))`)
	patternRe    = regexp.MustCompile(`\bPATTERN = '((?:[^']|'')*)'`)
	fileFormatRe = regexp.MustCompile(`\bFILE_FORMAT = \( ?FORMAT_NAME = '([^']+)' ?\)`)
)

// Load is the COPY INTO a RAW load task runs, with every name qualified by
// the task's schema. Pattern is kept as written inside the SQL literal.
type Load struct {
	Task       *Object
	Table      string
	Columns    []string
	Select     string
	Stage      string
	Pattern    string
	FileFormat string
	OnError    string
}

// LoadFor returns the load of the task that copies into table.
func (c *Catalog) LoadFor(table *Object) (*Load, bool) {
	for _, t := range c.ObjectsOfType(ObjectTypeTask) {
		l, ok := ParseLoad(t)
		if ok && l.Table == table.QualifiedName() {
			return l, true
		}
	}
	return nil, false
}

// ParseLoad reads the COPY INTO in a task body. It reports false for tasks
// that do not load a table.
func ParseLoad(task *Object) (*Load, bool) {
	normalized := sqltext.Normalize(task.Statement)
	m := copyRe.FindStringSubmatch(normalized)
	if m == nil {
		return nil, false
	}
	qualify := func(name string) string {
		schema, obj := splitName(name, task.Schema)
		if schema == "" {
			return obj
		}
		return schema + "." + obj
	}

	l := &Load{Task: task, Table: qualify(m[1]), Select: m[3], OnError: task.Option("ON_ERROR")}
	for _, col := range strings.Split(m[2], ",") {
		if col = strings.TrimSpace(col); col != "" {
			l.Columns = append(l.Columns, col)
		}
	}
	if m[4] != "" {
		l.Stage = qualify(m[4])
	} else {
		l.Stage = qualify(m[5])
	}
	if p := patternRe.FindStringSubmatch(normalized); p != nil {
		l.Pattern = p[1]
	}
	if f := fileFormatRe.FindStringSubmatch(normalized); f != nil {
		l.FileFormat = qualify(f[1])
	}
	return l, true
}
