package catalog

import (
	"strings"
)

// Layer is a data maturity layer of the warehouse.
type Layer string

const (
	LayerRaw       Layer = "RAW"
	LayerAgg       Layer = "AGG"
	LayerReporting Layer = "REPORTING"
	LayerSemantic  Layer = "SEMANTIC"
)

// Layers lists every layer in deployment order.
var Layers = []Layer{LayerRaw, LayerAgg, LayerReporting, LayerSemantic}

// Rank orders layers RAW < AGG < REPORTING < SEMANTIC. Unknown layers rank last.
func (l Layer) Rank() int {
	for i, layer := range Layers {
		if layer == l {
			return i
		}
	}
	return len(Layers)
}

// ParseLayer accepts layer names case-insensitively plus the REP and SEM
// abbreviations.
func ParseLayer(s string) (Layer, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "RAW":
		return LayerRaw, true
	case "AGG":
		return LayerAgg, true
	case "REPORTING", "REP":
		return LayerReporting, true
	case "SEMANTIC", "SEM":
		return LayerSemantic, true
	}
	return "", false
}

// ObjectType represents the type of warehouse object a statement creates
type ObjectType string

const (
	ObjectTypeSchema       ObjectType = "SCHEMA"
	ObjectTypeStage        ObjectType = "STAGE"
	ObjectTypeFileFormat   ObjectType = "FILE FORMAT"
	ObjectTypeTable        ObjectType = "TABLE"
	ObjectTypeStream       ObjectType = "STREAM"
	ObjectTypeTask         ObjectType = "TASK"
	ObjectTypeDynamicTable ObjectType = "DYNAMIC TABLE"
	ObjectTypeView         ObjectType = "VIEW"
	ObjectTypeSemanticView ObjectType = "SEMANTIC VIEW"
	ObjectTypeAlter        ObjectType = "ALTER"
	ObjectTypeOther        ObjectType = "OTHER"
)

// Creates reports whether the type defines a named object.
func (t ObjectType) Creates() bool {
	return t != ObjectTypeAlter && t != ObjectTypeOther
}

// Script is one embedded .sql file.
type Script struct {
	Path     string
	Layer    Layer
	Domain   string
	Body     string
	Checksum string
	Objects  []*Object
}

// Object is one classified statement of a script.
type Object struct {
	Type      ObjectType
	Schema    string
	Name      string
	Statement string
	Options   map[string]string
	Script    *Script
	Index     int

	// set by Catalog.resolve
	DependsOn []string
}

// QualifiedName returns SCHEMA.NAME, or NAME for schemas and unscoped objects.
func (o *Object) QualifiedName() string {
	if o.Schema == "" || o.Type == ObjectTypeSchema {
		return o.Name
	}
	return o.Schema + "." + o.Name
}

// Option returns a declared option such as TARGET_LAG.
func (o *Object) Option(key string) string {
	return o.Options[strings.ToUpper(key)]
}

// Filter narrows scripts by layer and domain. Empty fields match everything.
type Filter struct {
	Layers  []Layer
	Domains []string
}

// Match reports whether the script passes the filter.
func (f Filter) Match(s *Script) bool {
	if len(f.Layers) > 0 {
		found := false
		for _, l := range f.Layers {
			if l == s.Layer {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Domains) > 0 {
		found := false
		for _, d := range f.Domains {
			if strings.EqualFold(d, s.Domain) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// NewFilter builds a filter from user supplied layer and domain names.
func NewFilter(layers, domains []string) (Filter, error) {
	var f Filter
	for _, name := range layers {
		l, ok := ParseLayer(name)
		if !ok {
			return Filter{}, &UnknownLayerError{Name: name}
		}
		f.Layers = append(f.Layers, l)
	}
	for _, d := range domains {
		if d = strings.TrimSpace(d); d != "" {
			f.Domains = append(f.Domains, strings.ToUpper(d))
		}
	}
	return f, nil
}

// UnknownLayerError is returned for a layer name outside RAW/AGG/REPORTING/SEMANTIC.
type UnknownLayerError struct {
	Name string
}

func (e *UnknownLayerError) Error() string {
	return "unknown layer " + e.Name + " (expected RAW, AGG, REPORTING or SEMANTIC)"
}
