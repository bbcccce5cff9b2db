package cloudinit

import (
	"reflect"
	"testing"

	"github.com/k3sforge/k3sforge/pkg/config"
)

func boolPtr(b bool) *bool { return &b }

func TestNormalize_Defaults(t *testing.T) {
	u, ok, err := Normalize(config.UserConfig{Username: "alice"}, "cloud_init.users[0]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("entry was skipped")
	}

	want := User{
		Name:  "alice",
		Shell: config.DefaultShell,
		Sudo:  config.DefaultSudoRule,
	}
	if !reflect.DeepEqual(u, want) {
		t.Errorf("normalized user = %+v, want %+v", u, want)
	}
}

func TestNormalize_NameAlias(t *testing.T) {
	direct, _, err := Normalize(config.UserConfig{Username: "alice"}, "cloud_init.users[0]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	aliased, _, err := Normalize(config.UserConfig{Name: "alice"}, "cloud_init.users[0]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(direct, aliased) {
		t.Errorf("aliased user = %+v, want %+v", aliased, direct)
	}
}

func TestNormalize_UsernameWinsOverName(t *testing.T) {
	u, ok, err := Normalize(config.UserConfig{Username: "alice", Name: "bob"}, "cloud_init.users[0]")
	if err != nil || !ok {
		t.Fatalf("unexpected result: ok=%v err=%v", ok, err)
	}
	if u.Name != "alice" {
		t.Errorf("name = %q, want alice", u.Name)
	}
}

func TestNormalize_MissingUsernameSkips(t *testing.T) {
	_, ok, err := Normalize(config.UserConfig{Gecos: "no name"}, "cloud_init.users[0]")
	if err != nil {
		t.Fatalf("missing username must not be fatal, got %v", err)
	}
	if ok {
		t.Error("entry without username must be skipped")
	}
}

func TestNormalize_PasswordModeConflict(t *testing.T) {
	_, _, err := Normalize(config.UserConfig{
		Username:        "alice",
		HashedPasswd:    "$6$salt$hash",
		PlainTextPasswd: "secret",
	}, "nodes[0].cloud_init.users[0]")
	if !config.IsPasswordModeConflict(err) {
		t.Fatalf("expected PasswordModeConflict, got %v", err)
	}
}

func TestNormalize_Overrides(t *testing.T) {
	u, ok, err := Normalize(config.UserConfig{
		Username:     "svc",
		Shell:        "/bin/false",
		Sudo:         &config.SudoValue{Grant: false},
		LockPasswd:   boolPtr(true),
		System:       boolPtr(true),
		Gecos:        "service account",
		PrimaryGroup: "svc",
		Groups:       []string{"docker"},
		SSHKeys:      []string{"ssh-ed25519 AAAA test"},
	}, "cloud_init.users[0]")
	if err != nil || !ok {
		t.Fatalf("unexpected result: ok=%v err=%v", ok, err)
	}

	if u.Shell != "/bin/false" {
		t.Errorf("shell = %q, want /bin/false", u.Shell)
	}
	if u.Sudo != "" {
		t.Errorf("sudo = %q, want empty (withheld)", u.Sudo)
	}
	if !u.LockPasswd || !u.System {
		t.Errorf("lock_passwd=%v system=%v, want both true", u.LockPasswd, u.System)
	}
	if len(u.SSHAuthorizedKeys) != 1 || u.SSHAuthorizedKeys[0] != "ssh-ed25519 AAAA test" {
		t.Errorf("ssh_authorized_keys = %v", u.SSHAuthorizedKeys)
	}
}

func TestNormalizeUsers_SkipsOnlyBrokenEntries(t *testing.T) {
	users, err := normalizeUsers([]config.UserConfig{
		{Username: "alice"},
		{Gecos: "missing username"},
		{Name: "bob"},
	}, "cloud_init.users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("got %d users, want 2", len(users))
	}
	if users[0].Name != "alice" || users[1].Name != "bob" {
		t.Errorf("users = %q, %q; want alice, bob", users[0].Name, users[1].Name)
	}
}
