package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	allowed := []string{"-c", "-config"}

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "keeps flag with separate value, drops the rest",
			args: []string{"-c", "agent.json", "-d", "postgres://localhost/agent"},
			want: []string{"-c", "agent.json"},
		},
		{
			name: "keeps equals form intact",
			args: []string{"-config=agent.json", "-a", ":3000"},
			want: []string{"-config=agent.json"},
		},
		{
			name: "dash token after flag is not its value",
			args: []string{"-c", "-config=other.json"},
			want: []string{"-c", "-config=other.json"},
		},
		{
			name: "trailing flag without value survives",
			args: []string{"-d", "dsn", "-c"},
			want: []string{"-c"},
		},
		{
			name: "nothing allowed yields empty non-nil slice",
			args: []string{"-d", "dsn", "-s", "secret", "positional"},
			want: []string{},
		},
		{
			name: "repeats kept in order",
			args: []string{"-c", "one.json", "-c", "two.json"},
			want: []string{"-c", "one.json", "-c", "two.json"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FilterArgs(tc.args, allowed))
		})
	}
}

func TestJsonConfigFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "short form", args: []string{"agent", "-c", "/etc/agent.json"}, want: "/etc/agent.json"},
		{name: "long form", args: []string{"agent", "-config", "/etc/agent.json"}, want: "/etc/agent.json"},
		{name: "absent", args: []string{"agent", "-d", "dsn", "-a", ":3000"}, want: ""},
		{name: "last one wins", args: []string{"agent", "-c", "a.json", "-config", "b.json"}, want: "b.json"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			os.Args = tc.args
			assert.Equal(t, tc.want, JsonConfigFlags())
		})
	}
}
