package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("NEG_TEST_HOST", "agents.example.com")
	t.Setenv("NEG_TEST_PORT", "8443")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "single variable",
			in:   "base_url: https://{{.NEG_TEST_HOST}}/v1",
			want: "base_url: https://agents.example.com/v1",
		},
		{
			name: "multiple variables",
			in:   "addr: {{.NEG_TEST_HOST}}:{{.NEG_TEST_PORT}}",
			want: "addr: agents.example.com:8443",
		},
		{
			name: "missing variable expands empty",
			in:   "key: {{.NEG_TEST_DOES_NOT_EXIST}}",
			want: "key: ",
		},
		{
			name: "dollar signs pass through",
			in:   `pattern: "^secret.*$"`,
			want: `pattern: "^secret.*$"`,
		},
		{
			name: "no template syntax",
			in:   "plain: value",
			want: "plain: value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(ExpandEnv([]byte(tt.in))))
		})
	}
}

func TestExpandEnvMalformedTemplatePassesThrough(t *testing.T) {
	in := []byte("broken: {{.UNCLOSED")
	assert.Equal(t, in, ExpandEnv(in))
}
