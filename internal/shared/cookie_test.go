package shared

import (
	"reflect"
	"testing"
)

func TestParseCookies(t *testing.T) {
	tc := []struct {
		name   string
		header string
		want   map[string]string
	}{
		{
			name:   "missing header",
			header: "",
			want:   map[string]string{},
		},
		{
			name:   "single cookie",
			header: "directus_refresh_token=abc",
			want:   map[string]string{"directus_refresh_token": "abc"},
		},
		{
			name:   "browser separator",
			header: "a=1; b=2; c=3",
			want:   map[string]string{"a": "1", "b": "2", "c": "3"},
		},
		{
			name:   "no space separator",
			header: "a=1;b=2",
			want:   map[string]string{"a": "1", "b": "2"},
		},
		{
			name:   "duplicate names keep first",
			header: "token=first; token=second",
			want:   map[string]string{"token": "first"},
		},
		{
			name:   "unencoded equals in value",
			header: "token=abc==; jwt=a.b=c",
			want:   map[string]string{"token": "abc==", "jwt": "a.b=c"},
		},
		{
			name:   "unencoded semicolon splits value",
			header: "token=abc;def",
			want:   map[string]string{"token": "abc", "def": ""},
		},
		{
			name:   "empty value",
			header: "token=; other=1",
			want:   map[string]string{"token": "", "other": "1"},
		},
		{
			name:   "missing name",
			header: "=orphan; a=1",
			want:   map[string]string{"a": "1"},
		},
		{
			name:   "trailing separators",
			header: "a=1; ;",
			want:   map[string]string{"a": "1"},
		},
		{
			name:   "quoted value kept verbatim",
			header: `a="quoted value"`,
			want:   map[string]string{"a": `"quoted value"`},
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCookies(tt.header)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCookies(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}

func TestCookieValue(t *testing.T) {
	if v, ok := CookieValue("a=1; refresh=xyz", "refresh"); !ok || v != "xyz" {
		t.Errorf("expected xyz, got %q (ok=%v)", v, ok)
	}

	if _, ok := CookieValue("a=1", "refresh"); ok {
		t.Error("expected missing cookie")
	}
}
