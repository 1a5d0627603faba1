package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"regexp"
	"strings"

	"snowbank/internal/sqltext"
	"snowbank/pkg/errors"
)

const identifier = `[A-Z0-9_$."]+`

var (
	createRe = regexp.MustCompile(`^CREATE (?:OR REPLACE )?(?:SECURE |TRANSIENT |TEMPORARY )?` +
		`(SEMANTIC VIEW|DYNAMIC TABLE|FILE FORMAT|SCHEMA|STAGE|TABLE|STREAM|TASK|VIEW)` +
		`(?: IF NOT EXISTS)? (` + identifier + `)`)
	alterTaskRe = regexp.MustCompile(`^ALTER TASK (?:IF EXISTS )?(` + identifier + `) (RESUME|SUSPEND)`)
	useSchemaRe = regexp.MustCompile(`^USE SCHEMA (` + identifier + `)`)
	optionRe    = regexp.MustCompile(`\b(TARGET_LAG|WAREHOUSE|SCHEDULE|ON_ERROR|REFRESH_MODE|INITIALIZE)\s*=\s*('[^']*'|[A-Z0-9_$.]+)`)
	tokenRe     = regexp.MustCompile(`[A-Z_][A-Z0-9_$]*(?:\.[A-Z_][A-Z0-9_$]*){0,2}`)
	prefixRe    = regexp.MustCompile(`^[0-9]+_`)
)

// ParseScript classifies every statement of body. The path must look like
// <NN>_<layer>/<NNN>_<domain>[_<suffix>].sql.
func ParseScript(p, body string) (*Script, error) {
	layer, domain, err := classifyPath(p)
	if err != nil {
		return nil, err
	}

	body = strings.ReplaceAll(body, "\r\n", "\n")
	sum := sha256.Sum256([]byte(body))
	script := &Script{
		Path:     p,
		Layer:    layer,
		Domain:   domain,
		Body:     body,
		Checksum: hex.EncodeToString(sum[:]),
	}

	schema := ""
	for i, stmt := range sqltext.Split(body) {
		normalized := sqltext.Normalize(stmt)

		if m := useSchemaRe.FindStringSubmatch(normalized); m != nil {
			_, schema = splitName(m[1], "")
			script.Objects = append(script.Objects, &Object{
				Type: ObjectTypeOther, Schema: schema, Statement: stmt, Script: script, Index: i,
			})
			continue
		}

		obj := classify(normalized, schema)
		obj.Statement = stmt
		obj.Script = script
		obj.Index = i
		script.Objects = append(script.Objects, obj)
	}

	if len(script.Objects) == 0 {
		return nil, errors.Newf(errors.ErrCodeCatalogParse, "script %s contains no statements", p)
	}
	return script, nil
}

func classify(normalized, currentSchema string) *Object {
	obj := &Object{Type: ObjectTypeOther, Schema: currentSchema, Options: parseOptions(normalized)}

	if m := createRe.FindStringSubmatch(normalized); m != nil {
		obj.Type = ObjectType(m[1])
		if obj.Type == ObjectTypeSchema {
			obj.Name = lastPart(m[2])
			obj.Schema = obj.Name
			return obj
		}
		obj.Schema, obj.Name = splitName(m[2], currentSchema)
		return obj
	}

	if m := alterTaskRe.FindStringSubmatch(normalized); m != nil {
		obj.Type = ObjectTypeAlter
		obj.Schema, obj.Name = splitName(m[1], currentSchema)
		obj.Options["ACTION"] = m[2]
	}
	return obj
}

func parseOptions(normalized string) map[string]string {
	opts := make(map[string]string)
	for _, m := range optionRe.FindAllStringSubmatch(normalized, -1) {
		key := m[1]
		if _, seen := opts[key]; seen {
			continue
		}
		opts[key] = strings.Trim(m[2], "'")
	}
	return opts
}

// splitName returns schema and object for DB.SCHEMA.NAME, SCHEMA.NAME or
// NAME (which takes the current schema).
func splitName(name, currentSchema string) (string, string) {
	parts := strings.Split(strings.ReplaceAll(name, `"`, ""), ".")
	switch len(parts) {
	case 1:
		return currentSchema, parts[0]
	case 2:
		return parts[0], parts[1]
	default:
		return parts[len(parts)-2], parts[len(parts)-1]
	}
}

func lastPart(name string) string {
	parts := strings.Split(strings.ReplaceAll(name, `"`, ""), ".")
	return parts[len(parts)-1]
}

func classifyPath(p string) (Layer, string, error) {
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	dir, file := path.Split(p)
	dir = path.Base(strings.TrimSuffix(dir, "/"))

	if !strings.HasSuffix(file, ".sql") {
		return "", "", errors.Newf(errors.ErrCodeCatalogParse, "%s is not a .sql file", p)
	}

	layer, ok := ParseLayer(prefixRe.ReplaceAllString(dir, ""))
	if !ok {
		return "", "", errors.Newf(errors.ErrCodeCatalogParse, "cannot infer layer from directory %q", dir).
			WithSuggestions("Place scripts under 01_raw, 02_agg, 03_reporting or 04_semantic")
	}

	stem := prefixRe.ReplaceAllString(strings.TrimSuffix(file, ".sql"), "")
	domain := strings.ToUpper(strings.SplitN(stem, "_", 2)[0])
	if domain == "" {
		return "", "", errors.Newf(errors.ErrCodeCatalogParse, "cannot infer domain from file %q", file)
	}
	return layer, domain, nil
}

// references returns the candidate qualified names a statement mentions.
func references(stmt, schema string) []string {
	text := strings.ToUpper(sqltext.StripComments(stmt))
	seen := make(map[string]bool)
	var out []string

	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	for _, tok := range tokenRe.FindAllString(text, -1) {
		parts := strings.Split(tok, ".")
		switch len(parts) {
		case 1:
			if schema != "" {
				add(schema + "." + parts[0])
			}
		case 2:
			add(tok)
		case 3:
			add(parts[1] + "." + parts[2])
			add(parts[0] + "." + parts[1])
		}
	}
	return out
}

func (o *Object) String() string {
	if o.Type == ObjectTypeOther {
		return fmt.Sprintf("%s#%d", o.Script.Path, o.Index+1)
	}
	return fmt.Sprintf("%s %s", o.Type, o.QualifiedName())
}
