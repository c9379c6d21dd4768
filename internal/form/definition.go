// internal/form/definition.go
//
// Intake – Validator: YAML schema loader.
//
// Context
//   Every JSON payload the service accepts is described by a schema declared
//   in YAML.  A schema names its fields, their types, and the rules each one
//   must satisfy.  The schemas shipped with the binary live under
//   “schemas/” and are embedded; additional directories can be loaded at
//   start-up and override embedded definitions by ID.
//
// Workflow
//   •  Structs mirror the YAML: Schema → FieldDef (nested for object and
//      array-of-object fields).
//   •  LoadSchemas parses every “*.yaml” in an fs.FS directory and validates
//      structural rules so bad definitions fail loudly at boot.
//   •  GetSchema offers read-only access to a parsed schema by ID.
//
//------------------------------------------------------------------------------

package form

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------
// Data structures
// -----------------------------------------------------------------------------

// Field types understood by the validator.
const (
	TypeString   = "string"
	TypeEmail    = "email"
	TypeBool     = "bool"
	TypeDateTime = "datetime"
	TypeObject   = "object"
	TypeArray    = "array"
)

// Schema is one payload definition.
type Schema struct {
	ID     string     `yaml:"id"`
	Fields []FieldDef `yaml:"fields"`
}

// FieldDef describes a single payload key.  For TypeObject, Fields are the
// nested keys; for TypeArray, Fields describe each (object) element.
type FieldDef struct {
	Name       string     `yaml:"name"`
	Type       string     `yaml:"type"`
	Required   bool       `yaml:"required"`
	MinLength  int        `yaml:"minlength"`    // runes, 0 means unset
	MaxLength  int        `yaml:"maxlength"`    // runes, 0 means unset
	MustBeTrue bool       `yaml:"must_be_true"` // bool fields only
	Honeypot   bool       `yaml:"honeypot"`     // must stay absent or empty
	ErrorMsg   string     `yaml:"error"`        // replaces required/min/format messages
	Fields     []FieldDef `yaml:"fields"`
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

//go:embed schemas/*.yaml
var embedded embed.FS

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Schema)
)

func init() {
	if err := LoadSchemas(embedded, "schemas"); err != nil {
		panic("form: embedded schemas: " + err.Error())
	}
}

// GetSchema returns a parsed schema by ID.  The boolean is false when the ID
// is unknown.
func GetSchema(id string) (*Schema, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[id]
	return s, ok
}

// -----------------------------------------------------------------------------
// Loader API
// -----------------------------------------------------------------------------

// ParseSchema decodes one YAML document and validates its structure.  It
// never touches the registry.
func ParseSchema(raw []byte, name string) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse YAML %s: %w", name, err)
	}
	if s.ID == "" {
		return nil, fmt.Errorf("schema %s: missing required 'id'", name)
	}
	if len(s.Fields) == 0 {
		return nil, fmt.Errorf("schema %s: must have 'fields'", name)
	}
	if err := validateFields(s.Fields, name, ""); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadSchemas parses every “*.yaml” directly under dir and registers it,
// replacing any schema with the same ID.
func LoadSchemas(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read schema dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		p := path.Join(dir, e.Name())
		raw, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("read schema %s: %w", p, err)
		}
		s, err := ParseSchema(raw, p)
		if err != nil {
			return err
		}
		register(s)
	}
	return nil
}

func register(s *Schema) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.ID] = s
}

// -----------------------------------------------------------------------------
// Structural checks
// -----------------------------------------------------------------------------

var knownTypes = map[string]bool{
	TypeString:   true,
	TypeEmail:    true,
	TypeBool:     true,
	TypeDateTime: true,
	TypeObject:   true,
	TypeArray:    true,
}

func validateFields(fields []FieldDef, name, prefix string) error {
	seen := make(map[string]struct{}, len(fields))
	for i := range fields {
		f := &fields[i]
		full := joinPath(prefix, f.Name)
		if f.Name == "" {
			return fmt.Errorf("schema %s: field missing 'name' under %q", name, prefix)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("schema %s: duplicate field %q", name, full)
		}
		seen[f.Name] = struct{}{}

		if !knownTypes[f.Type] {
			return fmt.Errorf("schema %s: field %q has unknown type %q", name, full, f.Type)
		}
		if f.MinLength < 0 || f.MaxLength < 0 {
			return fmt.Errorf("schema %s: field %q minlength/maxlength cannot be negative", name, full)
		}
		if f.MaxLength > 0 && f.MinLength > f.MaxLength {
			return fmt.Errorf("schema %s: field %q minlength greater than maxlength", name, full)
		}
		if f.MustBeTrue && f.Type != TypeBool {
			return fmt.Errorf("schema %s: field %q must_be_true requires type bool", name, full)
		}
		if f.Honeypot && (f.Type != TypeString || f.Required) {
			return fmt.Errorf("schema %s: honeypot %q must be an optional string", name, full)
		}

		switch f.Type {
		case TypeObject, TypeArray:
			if len(f.Fields) == 0 {
				return fmt.Errorf("schema %s: field %q of type %s needs 'fields'", name, full, f.Type)
			}
			if err := validateFields(f.Fields, name, full); err != nil {
				return err
			}
		default:
			if len(f.Fields) > 0 {
				return fmt.Errorf("schema %s: field %q of type %s cannot have 'fields'", name, full, f.Type)
			}
		}
	}
	return nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
