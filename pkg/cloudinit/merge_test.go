package cloudinit

import (
	"reflect"
	"testing"

	"github.com/k3sforge/k3sforge/pkg/config"
)

func TestMerge_BuiltinDefaults(t *testing.T) {
	doc, err := Merge(nil, nil, "nodes[0].cloud_init")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(doc.Packages, []string{"qemu-guest-agent"}) {
		t.Errorf("packages = %v, want [qemu-guest-agent]", doc.Packages)
	}
	if !doc.PackageUpdate {
		t.Error("package_update must default to true")
	}
	if doc.PackageUpgrade {
		t.Error("package_upgrade must default to false")
	}
	if !doc.PackageRebootIfRequired {
		t.Error("package_reboot_if_required must default to true")
	}
	if !reflect.DeepEqual(doc.Runcmd, DefaultRuncmd()) {
		t.Errorf("runcmd = %v, want %v", doc.Runcmd, DefaultRuncmd())
	}
	if len(doc.Users) != 0 {
		t.Errorf("users = %v, want empty", doc.Users)
	}
}

func TestMerge_PackagesOverrideReplaces(t *testing.T) {
	global := &config.CloudInitSettings{Packages: []string{"curl", "git"}}
	override := &config.CloudInitSettings{Packages: []string{"vim"}}

	doc, err := Merge(global, override, "nodes[0].cloud_init")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Replacement, never a union with the global list.
	if !reflect.DeepEqual(doc.Packages, []string{"vim"}) {
		t.Errorf("packages = %v, want [vim]", doc.Packages)
	}
}

func TestMerge_EmptyPackagesOverrideLoses(t *testing.T) {
	global := &config.CloudInitSettings{Packages: []string{"curl"}}
	override := &config.CloudInitSettings{Packages: []string{}}

	doc, err := Merge(global, override, "nodes[0].cloud_init")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(doc.Packages, []string{"curl"}) {
		t.Errorf("packages = %v, want [curl]", doc.Packages)
	}
}

func TestMerge_EmptyRuncmdOverrideWins(t *testing.T) {
	global := &config.CloudInitSettings{Runcmd: []string{"echo global"}}
	override := &config.CloudInitSettings{Runcmd: []string{}}

	doc, err := Merge(global, override, "nodes[0].cloud_init")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Runcmd) != 0 {
		t.Errorf("runcmd = %v, want empty: explicit empty override must win", doc.Runcmd)
	}
}

func TestMerge_Booleans(t *testing.T) {
	tests := []struct {
		name     string
		global   *bool
		override *bool
		want     bool
	}{
		{"override wins", boolPtr(false), boolPtr(true), true},
		{"override false wins over global true", boolPtr(true), boolPtr(false), false},
		{"global inherited", boolPtr(false), nil, false},
		{"builtin default", nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			global := &config.CloudInitSettings{PackageUpdate: tt.global}
			override := &config.CloudInitSettings{PackageUpdate: tt.override}
			doc, err := Merge(global, override, "nodes[0].cloud_init")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if doc.PackageUpdate != tt.want {
				t.Errorf("package_update = %v, want %v", doc.PackageUpdate, tt.want)
			}
		})
	}
}

func TestMerge_UsersReplaceWholesale(t *testing.T) {
	global := &config.CloudInitSettings{Users: []config.UserConfig{{Username: "global-admin"}}}
	override := &config.CloudInitSettings{Users: []config.UserConfig{{Username: "node-admin"}}}

	doc, err := Merge(global, override, "nodes[0].cloud_init")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Users) != 1 || doc.Users[0].Name != "node-admin" {
		t.Errorf("users = %+v, want exactly node-admin", doc.Users)
	}
}

func TestMerge_GlobalUsersInherited(t *testing.T) {
	global := &config.CloudInitSettings{Users: []config.UserConfig{{Username: "global-admin"}}}

	doc, err := Merge(global, &config.CloudInitSettings{}, "nodes[0].cloud_init")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Users) != 1 || doc.Users[0].Name != "global-admin" {
		t.Errorf("users = %+v, want global-admin", doc.Users)
	}
}

func TestMerge_PasswordConflictPropagates(t *testing.T) {
	override := &config.CloudInitSettings{Users: []config.UserConfig{{
		Username:        "broken",
		HashedPasswd:    "$6$x$y",
		PlainTextPasswd: "secret",
	}}}

	_, err := Merge(nil, override, "nodes[0].cloud_init")
	if !config.IsPasswordModeConflict(err) {
		t.Fatalf("expected PasswordModeConflict, got %v", err)
	}
}

func TestMerge_Deterministic(t *testing.T) {
	global := &config.CloudInitSettings{
		Packages: []string{"curl"},
		Users:    []config.UserConfig{{Username: "alice"}, {Username: "bob"}},
	}
	override := &config.CloudInitSettings{Runcmd: []string{"echo one", "echo two"}}

	first, err := Merge(global, override, "nodes[0].cloud_init")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Merge(global, override, "nodes[0].cloud_init")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated merges with identical inputs must be identical")
	}
}

func TestMerge_DoesNotAliasInputs(t *testing.T) {
	global := &config.CloudInitSettings{Packages: []string{"curl"}}

	doc, err := Merge(global, nil, "nodes[0].cloud_init")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc.Packages[0] = "mutated"
	if global.Packages[0] != "curl" {
		t.Error("merge output must not alias the input slices")
	}
}

// Scenario from a two-node deployment: the server overrides packages and
// declares one admin user; the document must carry exactly that user with
// defaults applied.
func TestMerge_ServerNodeScenario(t *testing.T) {
	global := &config.CloudInitSettings{Packages: []string{"qemu-guest-agent"}}
	override := &config.CloudInitSettings{
		Packages: []string{"qemu-guest-agent"},
		Users: []config.UserConfig{{
			Username:        "k3sadmin",
			PlainTextPasswd: "k3sadmin",
			Sudo:            &config.SudoValue{Grant: true, Rule: "ALL=(ALL) NOPASSWD:ALL"},
		}},
	}

	doc, err := Merge(global, override, "nodes[0].cloud_init")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Users) != 1 {
		t.Fatalf("got %d users, want 1", len(doc.Users))
	}
	u := doc.Users[0]
	if u.Name != "k3sadmin" || u.PlainTextPasswd != "k3sadmin" {
		t.Errorf("user = %+v", u)
	}
	if u.LockPasswd {
		t.Error("lock_passwd must default to false")
	}
	if u.Shell != "/bin/bash" {
		t.Errorf("shell = %q, want /bin/bash", u.Shell)
	}
	if u.Sudo != "ALL=(ALL) NOPASSWD:ALL" {
		t.Errorf("sudo = %q", u.Sudo)
	}
}
