package form

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestEmbeddedSchemasRegistered(t *testing.T) {
	for _, id := range []string{"contact", "booking", "booking_webhook"} {
		if _, ok := GetSchema(id); !ok {
			t.Errorf("schema %q not registered", id)
		}
	}
}

func TestParseSchema_StructuralErrors(t *testing.T) {
	cases := map[string]string{
		"missing id": `fields: [{name: a, type: string}]`,
		"no fields":  `id: x`,
		"no name":    `{id: x, fields: [{type: string}]}`,
		"bad type":   `{id: x, fields: [{name: a, type: number}]}`,
		"min > max":  `{id: x, fields: [{name: a, type: string, minlength: 5, maxlength: 2}]}`,
		"dup":        `{id: x, fields: [{name: a, type: string}, {name: a, type: string}]}`,
		"must true":  `{id: x, fields: [{name: a, type: string, must_be_true: true}]}`,
		"honeypot":   `{id: x, fields: [{name: a, type: string, honeypot: true, required: true}]}`,
		"object":     `{id: x, fields: [{name: a, type: object}]}`,
		"leaf kids":  `{id: x, fields: [{name: a, type: string, fields: [{name: b, type: string}]}]}`,
	}
	for name, raw := range cases {
		if _, err := ParseSchema([]byte(raw), name); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadSchemas_OverridesByID(t *testing.T) {
	fsys := fstest.MapFS{
		"extra/lead.yaml":   {Data: []byte("id: test_lead\nfields:\n  - {name: email, type: email, required: true}\n")},
		"extra/readme.txt":  {Data: []byte("ignored")},
		"extra/nested/x.md": {Data: []byte("ignored")},
	}
	if err := LoadSchemas(fsys, "extra"); err != nil {
		t.Fatalf("LoadSchemas: %v", err)
	}
	s, ok := GetSchema("test_lead")
	if !ok || len(s.Fields) != 1 || s.Fields[0].Type != TypeEmail {
		t.Fatalf("unexpected schema: %+v", s)
	}

	bad := fstest.MapFS{"bad/x.yaml": {Data: []byte("id: broken\nfields:\n  - {name: a, type: nope}\n")}}
	err := LoadSchemas(bad, "bad")
	if err == nil || !strings.Contains(err.Error(), "unknown type") {
		t.Fatalf("err = %v", err)
	}
}
