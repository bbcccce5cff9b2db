package config

import (
	"reflect"
	"testing"
)

func lookupFrom(env map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
}

func TestResolveEnv_Substitution(t *testing.T) {
	raw := map[string]any{
		"proxmox": map[string]any{
			"host":     "ENV:PVE_HOST",
			"user":     "root@pam",
			"password": "ENV:PVE_PASSWORD",
		},
		"nodes": []any{
			map[string]any{
				"vmid": 100,
				"role": "server",
				"cloud_init": map[string]any{
					"runcmd": []any{"ENV:EXTRA_CMD", "echo done"},
				},
			},
		},
	}
	env := map[string]string{
		"PVE_HOST":     "pve.example.com",
		"PVE_PASSWORD": "s3cret",
		"EXTRA_CMD":    "systemctl restart foo",
	}

	resolved, dropped := ResolveEnv(raw, lookupFrom(env))

	if len(dropped) != 0 {
		t.Fatalf("expected no dropped paths, got %v", dropped)
	}
	proxmox := resolved["proxmox"].(map[string]any)
	if proxmox["host"] != "pve.example.com" {
		t.Errorf("host = %v, want pve.example.com", proxmox["host"])
	}
	if proxmox["password"] != "s3cret" {
		t.Errorf("password = %v, want s3cret", proxmox["password"])
	}
	runcmd := resolved["nodes"].([]any)[0].(map[string]any)["cloud_init"].(map[string]any)["runcmd"].([]any)
	want := []any{"systemctl restart foo", "echo done"}
	if !reflect.DeepEqual(runcmd, want) {
		t.Errorf("runcmd = %v, want %v", runcmd, want)
	}
}

func TestResolveEnv_PassThrough(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"plain string", "just a value"},
		{"marker mid-string", "prefix ENV:NAME"},
		{"lowercase after colon kept", "env:NAME"},
		{"empty marker name", "ENV:"},
		{"invalid name chars", "ENV:NOT-A-NAME"},
		{"number", 42},
		{"bool", true},
		{"null", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := map[string]any{"field": tt.value}
			resolved, dropped := ResolveEnv(raw, lookupFrom(nil))
			if len(dropped) != 0 {
				t.Fatalf("expected no dropped paths, got %v", dropped)
			}
			if !reflect.DeepEqual(resolved["field"], tt.value) {
				t.Errorf("field = %v, want %v", resolved["field"], tt.value)
			}
		})
	}
}

func TestResolveEnv_DropsUnsetOptional(t *testing.T) {
	raw := map[string]any{
		"proxmox": map[string]any{
			"host":     "pve.example.com",
			"password": "ENV:MISSING_PASSWORD",
		},
	}

	resolved, dropped := ResolveEnv(raw, lookupFrom(nil))

	proxmox := resolved["proxmox"].(map[string]any)
	if _, present := proxmox["password"]; present {
		t.Error("unresolved marker should be dropped, not kept")
	}
	if dropped["proxmox.password"] != "MISSING_PASSWORD" {
		t.Errorf("dropped = %v, want proxmox.password -> MISSING_PASSWORD", dropped)
	}
}

func TestResolveEnv_DropsUnsetSequenceElement(t *testing.T) {
	raw := map[string]any{
		"cloud_init": map[string]any{
			"runcmd": []any{"echo one", "ENV:GONE", "echo two"},
		},
	}

	resolved, dropped := ResolveEnv(raw, lookupFrom(nil))

	runcmd := resolved["cloud_init"].(map[string]any)["runcmd"].([]any)
	want := []any{"echo one", "echo two"}
	if !reflect.DeepEqual(runcmd, want) {
		t.Errorf("runcmd = %v, want %v", runcmd, want)
	}
	if dropped["cloud_init.runcmd[1]"] != "GONE" {
		t.Errorf("dropped = %v, want cloud_init.runcmd[1] -> GONE", dropped)
	}
}

func TestResolveEnv_EmptyValueIsSubstitution(t *testing.T) {
	raw := map[string]any{"field": "ENV:EMPTY"}

	resolved, dropped := ResolveEnv(raw, lookupFrom(map[string]string{"EMPTY": ""}))

	if len(dropped) != 0 {
		t.Fatalf("expected no dropped paths, got %v", dropped)
	}
	if resolved["field"] != "" {
		t.Errorf("field = %q, want empty string", resolved["field"])
	}
}

func TestResolveEnv_DoesNotMutateInput(t *testing.T) {
	raw := map[string]any{
		"proxmox": map[string]any{
			"host": "ENV:PVE_HOST",
		},
		"nodes": []any{
			map[string]any{"vmid": 100, "role": "ENV:ROLE"},
		},
	}

	ResolveEnv(raw, lookupFrom(map[string]string{"PVE_HOST": "resolved", "ROLE": "server"}))

	if raw["proxmox"].(map[string]any)["host"] != "ENV:PVE_HOST" {
		t.Error("input tree was mutated during resolution")
	}
	if raw["nodes"].([]any)[0].(map[string]any)["role"] != "ENV:ROLE" {
		t.Error("input sequence element was mutated during resolution")
	}
}
