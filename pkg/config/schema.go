package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// deviceIDPattern restricts network device ids to names that survive both
// YAML rendering and systemd-networkd unit naming.
var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateTree checks the resolved configuration tree with explicit checks
// in a fixed order, failing fast on the first violation. dropped is the
// record produced by ResolveEnv; it turns a missing required field into an
// EnvVarMissing error when the field was dropped because its environment
// variable is unset.
func ValidateTree(resolved map[string]any, dropped map[string]string) error {
	v := &treeValidator{dropped: dropped}
	return v.validateRoot(resolved)
}

// BuildConfig validates the resolved tree and decodes it into the typed
// model, running struct-tag validation as a final typed pass.
func BuildConfig(resolved map[string]any, dropped map[string]string) (*Config, error) {
	if err := ValidateTree(resolved, dropped); err != nil {
		return nil, err
	}
	cfg, err := decodeTree(resolved)
	if err != nil {
		return nil, err
	}
	if err := validateStruct(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

type treeValidator struct {
	dropped map[string]string
}

func (v *treeValidator) validateRoot(root map[string]any) error {
	proxmox, err := v.requiredObject(root, "proxmox", "")
	if err != nil {
		return err
	}
	if err := v.validateProxmox(proxmox); err != nil {
		return err
	}

	if raw, ok := root["cloud_init"]; ok {
		obj, ok := raw.(map[string]any)
		if !ok {
			return NewSchemaViolationError("cloud_init", "must be an object")
		}
		if err := v.validateCloudInit(obj, "cloud_init", true); err != nil {
			return err
		}
	}

	if raw, ok := root["nodes"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return NewSchemaViolationError("nodes", "must be an array")
		}
		if err := v.validateNodes(list); err != nil {
			return err
		}
	}

	return nil
}

func (v *treeValidator) validateProxmox(obj map[string]any) error {
	if err := v.rejectUnknownKeys(obj, "proxmox",
		"host", "user", "password", "api_token_id", "api_token_secret",
		"verify_ssl", "timeout", "snippet_storage", "ssh"); err != nil {
		return err
	}

	if _, err := v.requiredString(obj, "host", "proxmox"); err != nil {
		return err
	}
	if _, err := v.requiredString(obj, "user", "proxmox"); err != nil {
		return err
	}

	password, err := v.optionalString(obj, "password", "proxmox")
	if err != nil {
		return err
	}
	tokenID, err := v.optionalString(obj, "api_token_id", "proxmox")
	if err != nil {
		return err
	}
	tokenSecret, err := v.optionalString(obj, "api_token_secret", "proxmox")
	if err != nil {
		return err
	}

	hasPassword := password != ""
	hasToken := tokenID != "" || tokenSecret != ""
	switch {
	case hasPassword && hasToken:
		return NewAuthModeConflictError("password and api token authentication are mutually exclusive")
	case hasToken && (tokenID == "" || tokenSecret == ""):
		if err := v.droppedAuthField(); err != nil {
			return err
		}
		return NewAuthModeConflictError("api_token_id and api_token_secret must both be supplied")
	case !hasPassword && !hasToken:
		if err := v.droppedAuthField(); err != nil {
			return err
		}
		return NewAuthModeConflictError("either password or api_token_id/api_token_secret is required")
	}

	if err := v.optionalBool(obj, "verify_ssl", "proxmox"); err != nil {
		return err
	}
	if raw, ok := obj["timeout"]; ok {
		n, isInt := intValue(raw)
		if !isInt || n <= 0 {
			return NewSchemaViolationError("proxmox.timeout", "must be a positive integer")
		}
	}
	if _, err := v.optionalString(obj, "snippet_storage", "proxmox"); err != nil {
		return err
	}
	if raw, ok := obj["ssh"]; ok {
		sshObj, isObj := raw.(map[string]any)
		if !isObj {
			return NewSchemaViolationError("proxmox.ssh", "must be an object")
		}
		if err := v.validateSSH(sshObj); err != nil {
			return err
		}
	}

	return nil
}

// droppedAuthField reports the first authentication field that was dropped
// by the resolver, so an unset environment variable surfaces as such rather
// than as an authentication conflict.
func (v *treeValidator) droppedAuthField() error {
	for _, key := range []string{"password", "api_token_id", "api_token_secret"} {
		path := joinPath("proxmox", key)
		if envVar, ok := v.dropped[path]; ok {
			return NewEnvVarMissingError(envVar, path)
		}
	}
	return nil
}

func (v *treeValidator) validateSSH(obj map[string]any) error {
	if err := v.rejectUnknownKeys(obj, "proxmox.ssh",
		"username", "port", "public_key_file", "private_key_file"); err != nil {
		return err
	}
	for _, key := range []string{"username", "public_key_file", "private_key_file"} {
		if _, err := v.optionalString(obj, key, "proxmox.ssh"); err != nil {
			return err
		}
	}
	if raw, ok := obj["port"]; ok {
		n, isInt := intValue(raw)
		if !isInt || n < 1 || n > 65535 {
			return NewSchemaViolationError("proxmox.ssh.port", "must be an integer between 1 and 65535")
		}
	}
	return nil
}

func (v *treeValidator) validateNodes(list []any) error {
	seen := make(map[int]bool, len(list))
	for i, raw := range list {
		path := indexPath("nodes", i)
		obj, ok := raw.(map[string]any)
		if !ok {
			return NewSchemaViolationError(path, "must be an object")
		}
		if err := v.rejectUnknownKeys(obj, path, "vmid", "role", "name", "cloud_init"); err != nil {
			return err
		}

		vmid, err := v.requiredInt(obj, "vmid", path)
		if err != nil {
			return err
		}
		if vmid <= 0 {
			return NewSchemaViolationError(joinPath(path, "vmid"), "must be a positive integer")
		}
		if seen[vmid] {
			return NewDuplicateVMIDError(joinPath(path, "vmid"), vmid)
		}
		seen[vmid] = true

		role, err := v.requiredString(obj, "role", path)
		if err != nil {
			return err
		}
		if !Role(role).Valid() {
			return NewSchemaViolationError(joinPath(path, "role"),
				fmt.Sprintf("must be one of: %s", roleList()))
		}

		if _, err := v.optionalString(obj, "name", path); err != nil {
			return err
		}

		if raw, ok := obj["cloud_init"]; ok {
			ciObj, isObj := raw.(map[string]any)
			if !isObj {
				return NewSchemaViolationError(joinPath(path, "cloud_init"), "must be an object")
			}
			if err := v.validateCloudInit(ciObj, joinPath(path, "cloud_init"), false); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *treeValidator) validateCloudInit(obj map[string]any, path string, global bool) error {
	if err := v.rejectUnknownKeys(obj, path,
		"packages", "package_update", "package_upgrade", "package_reboot_if_required",
		"runcmd", "users", "network"); err != nil {
		return err
	}

	if err := v.optionalStringSlice(obj, "packages", path); err != nil {
		return err
	}
	for _, key := range []string{"package_update", "package_upgrade", "package_reboot_if_required"} {
		if err := v.optionalBool(obj, key, path); err != nil {
			return err
		}
	}
	if err := v.optionalStringSlice(obj, "runcmd", path); err != nil {
		return err
	}

	if raw, ok := obj["users"]; ok {
		list, isList := raw.([]any)
		if !isList {
			return NewSchemaViolationError(joinPath(path, "users"), "must be an array")
		}
		for i, item := range list {
			userPath := indexPath(joinPath(path, "users"), i)
			userObj, isObj := item.(map[string]any)
			if !isObj {
				return NewSchemaViolationError(userPath, "must be an object")
			}
			if err := v.validateUser(userObj, userPath); err != nil {
				return err
			}
		}
	}

	if raw, ok := obj["network"]; ok {
		netObj, isObj := raw.(map[string]any)
		if !isObj {
			return NewSchemaViolationError(joinPath(path, "network"), "must be an object")
		}
		if err := v.validateNetworkFragment(netObj, joinPath(path, "network"), global); err != nil {
			return err
		}
	}

	return nil
}

func (v *treeValidator) validateUser(obj map[string]any, path string) error {
	if err := v.rejectUnknownKeys(obj, path,
		"username", "name", "hashed_passwd", "plain_text_passwd", "ssh_keys",
		"sudo", "shell", "lock_passwd", "gecos", "primary_group", "groups", "system"); err != nil {
		return err
	}

	username, err := v.optionalString(obj, "username", path)
	if err != nil {
		return err
	}
	name, err := v.optionalString(obj, "name", path)
	if err != nil {
		return err
	}
	if username == "" && name == "" {
		for _, key := range []string{"username", "name"} {
			if envVar, ok := v.dropped[joinPath(path, key)]; ok {
				return NewEnvVarMissingError(envVar, joinPath(path, key))
			}
		}
		return NewSchemaViolationError(joinPath(path, "username"), "required field is missing")
	}

	hashed, err := v.optionalString(obj, "hashed_passwd", path)
	if err != nil {
		return err
	}
	plain, err := v.optionalString(obj, "plain_text_passwd", path)
	if err != nil {
		return err
	}
	if hashed != "" && plain != "" {
		return NewPasswordModeConflictError(path)
	}

	if err := v.optionalStringSlice(obj, "ssh_keys", path); err != nil {
		return err
	}
	if raw, ok := obj["sudo"]; ok {
		switch raw.(type) {
		case string, bool:
		default:
			return NewSchemaViolationError(joinPath(path, "sudo"), "must be a string or a boolean")
		}
	}
	for _, key := range []string{"shell", "gecos", "primary_group"} {
		if _, err := v.optionalString(obj, key, path); err != nil {
			return err
		}
	}
	for _, key := range []string{"lock_passwd", "system"} {
		if err := v.optionalBool(obj, key, path); err != nil {
			return err
		}
	}
	if err := v.optionalStringSlice(obj, "groups", path); err != nil {
		return err
	}

	return nil
}

func (v *treeValidator) validateNetworkFragment(obj map[string]any, path string, global bool) error {
	if err := v.rejectUnknownKeys(obj, path,
		"version", "renderer", "dhcp4-overrides", "dhcp6-overrides",
		"ethernets", "bonds", "bridges", "vlans"); err != nil {
		return err
	}

	if raw, ok := obj["version"]; ok {
		n, isInt := intValue(raw)
		if !isInt || n != 2 {
			return NewSchemaViolationError(joinPath(path, "version"), "must equal 2")
		}
	}
	if _, err := v.optionalString(obj, "renderer", path); err != nil {
		return err
	}
	for _, key := range []string{"dhcp4-overrides", "dhcp6-overrides"} {
		if raw, ok := obj[key]; ok {
			o, isObj := raw.(map[string]any)
			if !isObj {
				return NewSchemaViolationError(joinPath(path, key), "must be an object")
			}
			if err := v.validateDHCPOverrides(o, joinPath(path, key)); err != nil {
				return err
			}
		}
	}

	for _, kind := range []string{"ethernets", "bonds", "bridges", "vlans"} {
		raw, ok := obj[kind]
		if !ok {
			continue
		}
		if global {
			return NewSchemaViolationError(joinPath(path, kind),
				"device maps are not allowed in the global network fragment")
		}
		devices, isObj := raw.(map[string]any)
		if !isObj {
			return NewSchemaViolationError(joinPath(path, kind), "must be an object")
		}
		for _, id := range sortedKeys(devices) {
			devPath := joinPath(joinPath(path, kind), id)
			if !deviceIDPattern.MatchString(id) {
				return NewSchemaViolationError(devPath,
					"device id must contain only letters, digits, '-' and '_'")
			}
			device, isObj := devices[id].(map[string]any)
			if !isObj {
				return NewSchemaViolationError(devPath, "must be an object")
			}
			if err := v.validateDevice(device, devPath, kind); err != nil {
				return err
			}
		}
	}

	return nil
}

func (v *treeValidator) validateDevice(obj map[string]any, path, kind string) error {
	common := []string{"match", "dhcp4", "dhcp6", "addresses", "routes",
		"nameservers", "mtu", "dhcp4-overrides", "dhcp6-overrides"}
	switch kind {
	case "ethernets":
		if err := v.rejectUnknownKeys(obj, path, common...); err != nil {
			return err
		}
	case "bonds", "bridges":
		if err := v.rejectUnknownKeys(obj, path, append(common, "interfaces", "parameters")...); err != nil {
			return err
		}
		if err := v.requiredStringSlice(obj, "interfaces", path); err != nil {
			return err
		}
	case "vlans":
		if err := v.rejectUnknownKeys(obj, path, append(common, "id", "link")...); err != nil {
			return err
		}
		id, err := v.requiredInt(obj, "id", path)
		if err != nil {
			return err
		}
		if id < 0 || id > 4094 {
			return NewSchemaViolationError(joinPath(path, "id"), "must be between 0 and 4094")
		}
		if _, err := v.requiredString(obj, "link", path); err != nil {
			return err
		}
	}

	for _, key := range []string{"dhcp4", "dhcp6"} {
		if err := v.optionalBool(obj, key, path); err != nil {
			return err
		}
	}
	if err := v.optionalStringSlice(obj, "addresses", path); err != nil {
		return err
	}
	if raw, ok := obj["mtu"]; ok {
		n, isInt := intValue(raw)
		if !isInt || n <= 0 {
			return NewSchemaViolationError(joinPath(path, "mtu"), "must be a positive integer")
		}
	}
	for _, key := range []string{"match", "nameservers", "dhcp4-overrides", "dhcp6-overrides"} {
		if raw, ok := obj[key]; ok {
			if _, isObj := raw.(map[string]any); !isObj {
				return NewSchemaViolationError(joinPath(path, key), "must be an object")
			}
		}
	}
	if raw, ok := obj["routes"]; ok {
		list, isList := raw.([]any)
		if !isList {
			return NewSchemaViolationError(joinPath(path, "routes"), "must be an array")
		}
		for i, item := range list {
			if _, isObj := item.(map[string]any); !isObj {
				return NewSchemaViolationError(indexPath(joinPath(path, "routes"), i), "must be an object")
			}
		}
	}

	return nil
}

func (v *treeValidator) validateDHCPOverrides(obj map[string]any, path string) error {
	if err := v.rejectUnknownKeys(obj, path,
		"use-dns", "use-ntp", "use-domains", "use-routes", "use-hostname",
		"send-hostname", "hostname", "route-metric"); err != nil {
		return err
	}
	for _, key := range []string{"use-dns", "use-ntp", "use-domains", "use-routes", "use-hostname", "send-hostname"} {
		if err := v.optionalBool(obj, key, path); err != nil {
			return err
		}
	}
	if _, err := v.optionalString(obj, "hostname", path); err != nil {
		return err
	}
	if raw, ok := obj["route-metric"]; ok {
		n, isInt := intValue(raw)
		if !isInt || n < 0 {
			return NewSchemaViolationError(joinPath(path, "route-metric"), "must be a non-negative integer")
		}
	}
	return nil
}

func (v *treeValidator) requiredObject(obj map[string]any, key, parent string) (map[string]any, error) {
	path := joinPath(parent, key)
	raw, ok := obj[key]
	if !ok {
		return nil, NewSchemaViolationError(path, "required section is missing")
	}
	o, ok := raw.(map[string]any)
	if !ok {
		return nil, NewSchemaViolationError(path, "must be an object")
	}
	return o, nil
}

func (v *treeValidator) requiredString(obj map[string]any, key, parent string) (string, error) {
	path := joinPath(parent, key)
	raw, ok := obj[key]
	if !ok {
		if envVar, dropped := v.dropped[path]; dropped {
			return "", NewEnvVarMissingError(envVar, path)
		}
		return "", NewSchemaViolationError(path, "required field is missing")
	}
	s, ok := raw.(string)
	if !ok {
		return "", NewSchemaViolationError(path, "must be a string")
	}
	if s == "" {
		return "", NewSchemaViolationError(path, "must not be empty")
	}
	return s, nil
}

func (v *treeValidator) optionalString(obj map[string]any, key, parent string) (string, error) {
	raw, ok := obj[key]
	if !ok {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", NewSchemaViolationError(joinPath(parent, key), "must be a string")
	}
	return s, nil
}

func (v *treeValidator) optionalBool(obj map[string]any, key, parent string) error {
	raw, ok := obj[key]
	if !ok {
		return nil
	}
	if _, isBool := raw.(bool); !isBool {
		return NewSchemaViolationError(joinPath(parent, key), "must be a boolean")
	}
	return nil
}

func (v *treeValidator) requiredInt(obj map[string]any, key, parent string) (int, error) {
	path := joinPath(parent, key)
	raw, ok := obj[key]
	if !ok {
		if envVar, dropped := v.dropped[path]; dropped {
			return 0, NewEnvVarMissingError(envVar, path)
		}
		return 0, NewSchemaViolationError(path, "required field is missing")
	}
	n, isInt := intValue(raw)
	if !isInt {
		return 0, NewSchemaViolationError(path, "must be an integer")
	}
	return n, nil
}

func (v *treeValidator) optionalStringSlice(obj map[string]any, key, parent string) error {
	raw, ok := obj[key]
	if !ok {
		return nil
	}
	return checkStringSlice(raw, joinPath(parent, key))
}

func (v *treeValidator) requiredStringSlice(obj map[string]any, key, parent string) error {
	path := joinPath(parent, key)
	raw, ok := obj[key]
	if !ok {
		if envVar, dropped := v.dropped[path]; dropped {
			return NewEnvVarMissingError(envVar, path)
		}
		return NewSchemaViolationError(path, "required field is missing")
	}
	if err := checkStringSlice(raw, path); err != nil {
		return err
	}
	if len(raw.([]any)) == 0 {
		return NewSchemaViolationError(path, "must not be empty")
	}
	return nil
}

func checkStringSlice(raw any, path string) error {
	list, ok := raw.([]any)
	if !ok {
		return NewSchemaViolationError(path, "must be an array of strings")
	}
	for i, item := range list {
		if _, isString := item.(string); !isString {
			return NewSchemaViolationError(indexPath(path, i), "must be a string")
		}
	}
	return nil
}

func (v *treeValidator) rejectUnknownKeys(obj map[string]any, path string, known ...string) error {
	allowed := make(map[string]bool, len(known))
	for _, k := range known {
		allowed[k] = true
	}
	var unknown []string
	for k := range obj {
		if !allowed[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return NewSchemaViolationError(joinPath(path, unknown[0]), "unknown field")
}

// intValue extracts an integral value from a JSON scalar. JSON numbers
// decode as float64; Go ints are accepted for trees built in tests.
func intValue(raw any) (int, bool) {
	switch n := raw.(type) {
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func roleList() string {
	roles := Roles()
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}

// decodeTree converts the validated tree into the typed model via a JSON
// round trip.
func decodeTree(resolved map[string]any) (*Config, error) {
	data, err := json.Marshal(resolved)
	if err != nil {
		return nil, NewSchemaViolationError("", "configuration tree is not serializable").WithCause(err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, NewSchemaViolationError("", "configuration does not match the typed model").WithCause(err)
	}
	return &cfg, nil
}

var structValidate = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateStruct runs struct-tag validation over the typed model as a
// backstop behind the tree checks.
func validateStruct(cfg *Config) error {
	err := structValidate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		path := strings.TrimPrefix(fe.Namespace(), "Config.")
		return NewSchemaViolationError(path, fmt.Sprintf("failed %q constraint", fe.Tag()))
	}
	return err
}
