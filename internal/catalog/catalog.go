// Package catalog holds the warehouse DDL, grouped by layer and domain, and
// the tooling to classify, lint and order it for deployment.
package catalog

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"snowbank/internal/logging"
	"snowbank/pkg/errors"
)

//go:embed sql
var embedded embed.FS

// Catalog is the parsed set of scripts and the objects they create.
type Catalog struct {
	Scripts []*Script

	objects    map[string]*Object
	duplicates []*Object
}

// Load parses the DDL compiled into the binary.
func Load() (*Catalog, error) {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "embedded catalog is missing")
	}
	return LoadFS(sub)
}

// LoadDir parses an external checkout laid out like the embedded tree.
func LoadDir(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, errors.Newf(errors.ErrCodeSourceUnavailable, "SQL directory %s is not readable", dir).
			WithContext("dir", dir)
	}
	return LoadFS(os.DirFS(dir))
}

// LoadFS parses every .sql file two levels deep in fsys.
func LoadFS(fsys fs.FS) (*Catalog, error) {
	var scripts []*Script

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".sql") {
			return nil
		}
		if strings.Count(p, "/") != 1 {
			logging.Debug().Str("path", p).Msg("skipping sql file outside a layer directory")
			return nil
		}

		body, err := fs.ReadFile(fsys, p)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeFileOperation, "failed to read "+p)
		}
		script, err := ParseScript(p, string(body))
		if err != nil {
			return err
		}
		scripts = append(scripts, script)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(scripts) == 0 {
		return nil, errors.New(errors.ErrCodeCatalogNotFound, "no SQL scripts found")
	}

	return New(scripts), nil
}

// New indexes scripts and resolves object dependencies.
func New(scripts []*Script) *Catalog {
	sort.SliceStable(scripts, func(i, j int) bool {
		return scriptLess(scripts[i], scripts[j])
	})

	c := &Catalog{
		Scripts: scripts,
		objects: make(map[string]*Object),
	}

	for _, s := range scripts {
		for _, o := range s.Objects {
			if !o.Type.Creates() {
				continue
			}
			key := o.QualifiedName()
			if _, exists := c.objects[key]; exists {
				c.duplicates = append(c.duplicates, o)
				continue
			}
			c.objects[key] = o
		}
	}

	for _, s := range scripts {
		for _, o := range s.Objects {
			c.resolve(o)
		}
	}

	logging.Debug().Int("scripts", len(scripts)).Int("objects", len(c.objects)).Msg("catalog loaded")
	return c
}

func (c *Catalog) resolve(o *Object) {
	self := ""
	if o.Type.Creates() {
		self = o.QualifiedName()
	}

	seen := make(map[string]bool)
	for _, ref := range references(o.Statement, o.Schema) {
		if ref == self || seen[ref] {
			continue
		}
		if _, ok := c.objects[ref]; ok {
			seen[ref] = true
			o.DependsOn = append(o.DependsOn, ref)
		}
	}

	// objects depend on their schema when the catalog creates it
	if o.Type != ObjectTypeSchema && o.Schema != "" && !seen[o.Schema] {
		if _, ok := c.objects[o.Schema]; ok {
			o.DependsOn = append(o.DependsOn, o.Schema)
		}
	}
	sort.Strings(o.DependsOn)
}

// Lookup finds an object by SCHEMA.NAME.
func (c *Catalog) Lookup(qualified string) (*Object, bool) {
	o, ok := c.objects[strings.ToUpper(qualified)]
	return o, ok
}

// Objects returns every classified statement in script order.
func (c *Catalog) Objects() []*Object {
	var out []*Object
	for _, s := range c.Scripts {
		out = append(out, s.Objects...)
	}
	return out
}

// ObjectsOfType returns the creating objects of one type in script order.
func (c *Catalog) ObjectsOfType(t ObjectType) []*Object {
	var out []*Object
	for _, o := range c.Objects() {
		if o.Type == t {
			out = append(out, o)
		}
	}
	return out
}

// Dependencies returns the catalog objects obj references.
func (c *Catalog) Dependencies(obj *Object) []*Object {
	out := make([]*Object, 0, len(obj.DependsOn))
	for _, name := range obj.DependsOn {
		out = append(out, c.objects[name])
	}
	return out
}

// Schemas lists every schema the catalog creates or places objects in.
func (c *Catalog) Schemas() []string {
	seen := make(map[string]bool)
	var out []string
	for _, o := range c.Objects() {
		if o.Schema != "" && !seen[o.Schema] {
			seen[o.Schema] = true
			out = append(out, o.Schema)
		}
	}
	sort.Strings(out)
	return out
}

// Domains lists the domain codes present in the catalog.
func (c *Catalog) Domains() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range c.Scripts {
		if !seen[s.Domain] {
			seen[s.Domain] = true
			out = append(out, s.Domain)
		}
	}
	sort.Strings(out)
	return out
}

// Select returns the scripts matching f in catalog order.
func (c *Catalog) Select(f Filter) []*Script {
	var out []*Script
	for _, s := range c.Scripts {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// Script returns the script at path p.
func (c *Catalog) Script(p string) (*Script, bool) {
	p = path.Clean(p)
	for _, s := range c.Scripts {
		if s.Path == p {
			return s, true
		}
	}
	return nil, false
}

func scriptLess(a, b *Script) bool {
	if a.Layer.Rank() != b.Layer.Rank() {
		return a.Layer.Rank() < b.Layer.Rank()
	}
	return a.Path < b.Path
}
