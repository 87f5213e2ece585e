package probe

import (
	"encoding/json"
	"testing"
)

var transcriptPaths = []string{"transcript", "text", "output", "results.transcript", "data.transcript"}

type panicky struct{}

func (panicky) AsMap() map[string]any { panic("boom") }

type shaped struct {
	Transcript string `json:"transcript"`
	Language   string `json:"language_code"`
}

func TestToMap(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		if m := ToMap(nil); len(m) != 0 {
			t.Errorf("expected empty map, got %v", m)
		}
	})

	t.Run("nil pointer", func(t *testing.T) {
		var s *shaped
		if m := ToMap(s); len(m) != 0 {
			t.Errorf("expected empty map, got %v", m)
		}
	})

	t.Run("map passes through", func(t *testing.T) {
		in := map[string]any{"text": "hi"}
		if m := ToMap(in); m["text"] != "hi" {
			t.Errorf("unexpected map %v", m)
		}
	})

	t.Run("struct round trips through JSON", func(t *testing.T) {
		m := ToMap(shaped{Transcript: "hello", Language: "en-IN"})
		if m["transcript"] != "hello" || m["language_code"] != "en-IN" {
			t.Errorf("unexpected map %v", m)
		}
	})

	t.Run("JSON bytes", func(t *testing.T) {
		m := ToMap(json.RawMessage(`{"data":{"transcript":"x"}}`))
		if _, ok := m["data"].(map[string]any); !ok {
			t.Errorf("expected nested map, got %v", m)
		}
	})

	t.Run("non-object falls back to raw", func(t *testing.T) {
		m := ToMap("plain words")
		if m[RawKey] != "plain words" {
			t.Errorf("expected raw fallback, got %v", m)
		}
	})

	t.Run("unmarshalable value falls back to raw", func(t *testing.T) {
		m := ToMap(make(chan int))
		if _, ok := m[RawKey]; !ok {
			t.Errorf("expected raw fallback, got %v", m)
		}
	})

	t.Run("panicking mapper is recovered", func(t *testing.T) {
		m := ToMap(panicky{})
		if _, ok := m[RawKey]; !ok {
			t.Errorf("expected raw fallback, got %v", m)
		}
	})
}

func TestPickFirst(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"top level", `{"transcript":"hello"}`, "hello"},
		{"second path", `{"text":"from text"}`, "from text"},
		{"nested path", `{"results":{"transcript":"nested"}}`, "nested"},
		{"deep data path", `{"data":{"transcript":"deep"}}`, "deep"},
		{"empty string skipped", `{"transcript":"","output":"out"}`, "out"},
		{"empty list skipped", `{"transcript":[],"text":"t"}`, "t"},
		{"empty map skipped", `{"transcript":{},"text":"t"}`, "t"},
		{"null skipped", `{"transcript":null,"text":"t"}`, "t"},
		{"path through non-map", `{"results":"flat","text":"t"}`, "t"},
		{"number rendered", `{"output":42}`, "42"},
		{"composite rendered as JSON", `{"output":["a","b"]}`, `["a","b"]`},
		{"nothing matches", `{"unrelated":"x"}`, ""},
		{"order wins", `{"output":"o","transcript":"t"}`, "t"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PickFirst(ToMap([]byte(tt.in)), transcriptPaths)
			if got != tt.want {
				t.Errorf("PickFirst = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPickFirstOnEmptyInputs(t *testing.T) {
	if got := PickFirst(nil, transcriptPaths); got != "" {
		t.Errorf("nil map: got %q", got)
	}
	if got := PickFirst(map[string]any{"text": "x"}, nil); got != "" {
		t.Errorf("no paths: got %q", got)
	}
}

func TestIsEmpty(t *testing.T) {
	var nilSlice []string
	cases := map[string]struct {
		v    any
		want bool
	}{
		"nil":          {nil, true},
		"empty string": {"", true},
		"space":        {" ", false},
		"zero":         {float64(0), false},
		"false":        {false, false},
		"typed nil":    {nilSlice, true},
		"typed slice":  {[]string{"a"}, false},
	}
	for name, c := range cases {
		if got := IsEmpty(c.v); got != c.want {
			t.Errorf("%s: IsEmpty = %v, want %v", name, got, c.want)
		}
	}
}
