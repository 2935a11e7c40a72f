package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedMessages(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cases := []struct {
		key  string
		data any
		want string
	}{
		{"user.created", map[string]any{"Name": "alice"}, "User alice created!"},
		{"game.new", nil, "Good luck playing Concentration!"},
		{"user.name_required", nil, "A user name is required!"},
		{"game.won", nil, "You win!"},
		{"move.first_out_of_range", nil, "First choice is not in range of 0-51!"},
		{"stats.average", map[string]any{"Average": 40.0}, "The average amount of moves per game is 40.00"},
		{"stats.average", map[string]any{"Average": 41.0 / 3}, "The average amount of moves per game is 13.67"},
		{"reminder.invite", map[string]any{"Name": "bob"}, "Hello bob, try out Concentration!"},
	}
	for _, tc := range cases {
		got, err := c.Render(tc.key, tc.data)
		if err != nil {
			t.Errorf("%s: %v", tc.key, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s = %q, want %q", tc.key, got, tc.want)
		}
	}
}

func TestMissingKeyAndData(t *testing.T) {
	c, _ := New("")
	if _, err := c.Render("nope", nil); err == nil {
		t.Fatalf("expected missing template error")
	}
	if _, err := c.Render("user.created", map[string]any{}); err == nil {
		t.Fatalf("expected missing data error")
	}
	if got := c.Text("nope", nil); got != "nope" {
		t.Fatalf("Text fallback = %q", got)
	}
	var nilCat *Catalog
	if got := nilCat.Text("game.won", nil); got != "game.won" {
		t.Fatalf("nil catalog Text = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	write("a.yaml", "game:\n  won: \"Victory!\"\n")
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Text("game.won", nil); got != "Victory!" {
		t.Fatalf("override = %q", got)
	}
	if got := c.Text("game.new", nil); got != "Good luck playing Concentration!" {
		t.Fatalf("default lost: %q", got)
	}

	write("b.yml", "game:\n  won: \"Again\"\n")
	c, err = New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Text("game.won", nil); got != "Again" {
		t.Fatalf("later file should win, got %q", got)
	}

	write("c.yaml", "game:\n  won: [1, 2]\n")
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "c.yaml") {
		t.Fatalf("expected error naming c.yaml, got %v", err)
	}
	if _, err := New(filepath.Join(dir, "missing")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}
