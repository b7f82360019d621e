package cli

import (
	"bytes"
	"regexp"
	"testing"
)

func TestNewRootCmd_hasSubcommands(t *testing.T) {
	root := NewRootCmd("test")
	if root == nil {
		t.Fatal("NewRootCmd returned nil")
	}
	cmds := root.Commands()
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}
	for _, want := range []string{"start", "stop", "status", "submit", "history", "command", "poll", "apikey", "doctor"} {
		if !names[want] {
			t.Errorf("expected subcommand %q", want)
		}
	}
}

func TestNewRootCmd_versionFlag(t *testing.T) {
	root := NewRootCmd("1.2.3")
	if root.Version != "1.2.3" {
		t.Errorf("Version: got %q", root.Version)
	}
}

func TestNewRootCmd_hasHomeFlag(t *testing.T) {
	root := NewRootCmd("")
	f := root.PersistentFlags().Lookup("home")
	if f == nil {
		t.Fatal("expected --home persistent flag")
	}
}

func TestApikeyGenerate(t *testing.T) {
	root := NewRootCmd("")
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"apikey", "generate"})
	if err := root.Execute(); err != nil {
		t.Fatalf("apikey generate: %v", err)
	}
	out := buf.String()
	hexKey := regexp.MustCompile(`(?m)^  ([a-f0-9]{64})$`)
	if !hexKey.MatchString(out) {
		t.Errorf("output should contain a 64-char hex key on its own line; got:\n%s", out)
	}
	if !regexp.MustCompile(`ROBOPET_API_KEY`).MatchString(out) {
		t.Errorf("output should mention ROBOPET_API_KEY")
	}
	if !regexp.MustCompile(`X-API-Key`).MatchString(out) {
		t.Errorf("output should mention X-API-Key")
	}
}

func TestCommandFinish_rejectsBadStatus(t *testing.T) {
	root := NewRootCmd("")
	root.SetArgs([]string{"--home", t.TempDir(), "command", "finish", "--id", "abc", "--status", "done"})
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	if err := root.Execute(); err == nil {
		t.Fatal("expected error for non-terminal status")
	}
}

func TestSubmit_requiresUtteranceOrAudio(t *testing.T) {
	root := NewRootCmd("")
	root.SetArgs([]string{"--home", t.TempDir(), "submit"})
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	if err := root.Execute(); err == nil {
		t.Fatal("expected error when neither utterance nor --audio is given")
	}
}

func TestApiBase(t *testing.T) {
	t.Setenv("ROBOPET_SERVER", "")
	if got := apiBase("http://pi:9000"); got != "http://pi:9000" {
		t.Errorf("flag should win: got %q", got)
	}
	if got := apiBase(""); got != "http://127.0.0.1:8787" {
		t.Errorf("default: got %q", got)
	}
	t.Setenv("ROBOPET_SERVER", "http://server:8787")
	if got := apiBase(""); got != "http://server:8787" {
		t.Errorf("env: got %q", got)
	}
}
