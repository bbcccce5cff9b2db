package config

import (
	"errors"
	"fmt"
)

// ErrorKind classifies configuration errors by their root cause.
type ErrorKind string

const (
	// KindEnvVarMissing indicates a required field referenced an ENV:NAME
	// marker whose environment variable is unset.
	KindEnvVarMissing ErrorKind = "env_var_missing"

	// KindSchemaViolation indicates a structural, type, enum, pattern, or
	// cardinality violation in the configuration tree.
	KindSchemaViolation ErrorKind = "schema_violation"

	// KindAuthModeConflict indicates the proxmox section supplies both or
	// neither of the password and API-token authentication modes.
	KindAuthModeConflict ErrorKind = "auth_mode_conflict"

	// KindPasswordModeConflict indicates a user entry carries both
	// hashed_passwd and plain_text_passwd.
	KindPasswordModeConflict ErrorKind = "password_mode_conflict"

	// KindDanglingDeviceReference indicates a bond/bridge member or vlan
	// link names a device id that is not declared in the node's graph.
	KindDanglingDeviceReference ErrorKind = "dangling_device_reference"

	// KindDuplicateDeviceID indicates the same device id is declared more
	// than once across a node's combined device maps.
	KindDuplicateDeviceID ErrorKind = "duplicate_device_id"

	// KindDuplicateVMID indicates two node entries declare the same vmid.
	KindDuplicateVMID ErrorKind = "duplicate_vmid"
)

// ConfigError represents a classified configuration error with the path
// of the offending field.
// nolint:revive // ConfigError is intentionally named to distinguish from standard errors
type ConfigError struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Path is the JSON path of the offending field (e.g., "proxmox.host",
	// "nodes[0].cloud_init.users[1]").
	Path string `json:"path,omitempty"`

	// EnvVar is the unresolved environment variable name, if applicable.
	EnvVar string `json:"env_var,omitempty"`

	// Device is the offending device id for device graph errors.
	Device string `json:"device,omitempty"`

	// VMID is the duplicated vmid for KindDuplicateVMID errors.
	VMID int `json:"vmid,omitempty"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err.Error())
	}
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Path, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, msg)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *ConfigError) Is(target error) bool {
	t, ok := target.(*ConfigError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Path == "" || e.Path == t.Path)
}

// NewEnvVarMissingError creates an error for an unset environment variable
// backing a required configuration field.
func NewEnvVarMissingError(envVar, path string) *ConfigError {
	return &ConfigError{
		Kind:    KindEnvVarMissing,
		Path:    path,
		EnvVar:  envVar,
		Message: fmt.Sprintf("environment variable %q is not set", envVar),
	}
}

// NewSchemaViolationError creates an error for a structural violation at
// the given path.
func NewSchemaViolationError(path, message string) *ConfigError {
	return &ConfigError{
		Kind:    KindSchemaViolation,
		Path:    path,
		Message: message,
	}
}

// NewAuthModeConflictError creates an error for an invalid combination of
// proxmox authentication settings.
func NewAuthModeConflictError(message string) *ConfigError {
	return &ConfigError{
		Kind:    KindAuthModeConflict,
		Path:    "proxmox",
		Message: message,
	}
}

// NewPasswordModeConflictError creates an error for a user entry declaring
// both password forms.
func NewPasswordModeConflictError(path string) *ConfigError {
	return &ConfigError{
		Kind:    KindPasswordModeConflict,
		Path:    path,
		Message: "hashed_passwd and plain_text_passwd are mutually exclusive",
	}
}

// NewDanglingDeviceReferenceError creates an error for a reference to an
// undeclared device id.
func NewDanglingDeviceReferenceError(path, device string) *ConfigError {
	return &ConfigError{
		Kind:    KindDanglingDeviceReference,
		Path:    path,
		Device:  device,
		Message: fmt.Sprintf("references undefined device %q", device),
	}
}

// NewDuplicateDeviceIDError creates an error for a device id declared in
// more than one device map.
func NewDuplicateDeviceIDError(path, device string) *ConfigError {
	return &ConfigError{
		Kind:    KindDuplicateDeviceID,
		Path:    path,
		Device:  device,
		Message: fmt.Sprintf("device id %q is declared more than once", device),
	}
}

// NewDuplicateVMIDError creates an error for a vmid declared by more than
// one node entry.
func NewDuplicateVMIDError(path string, vmid int) *ConfigError {
	return &ConfigError{
		Kind:    KindDuplicateVMID,
		Path:    path,
		VMID:    vmid,
		Message: fmt.Sprintf("vmid %d is declared more than once", vmid),
	}
}

// WithCause attaches an underlying error for error chain inspection.
func (e *ConfigError) WithCause(err error) *ConfigError {
	e.Err = err
	return e
}

// IsEnvVarMissing returns true if the error is a missing environment
// variable error.
func IsEnvVarMissing(err error) bool {
	return kindOf(err) == KindEnvVarMissing
}

// IsSchemaViolation returns true if the error is a schema violation.
func IsSchemaViolation(err error) bool {
	return kindOf(err) == KindSchemaViolation
}

// IsAuthModeConflict returns true if the error is an authentication mode
// conflict.
func IsAuthModeConflict(err error) bool {
	return kindOf(err) == KindAuthModeConflict
}

// IsPasswordModeConflict returns true if the error is a user password mode
// conflict.
func IsPasswordModeConflict(err error) bool {
	return kindOf(err) == KindPasswordModeConflict
}

// IsDanglingDeviceReference returns true if the error is a dangling device
// reference.
func IsDanglingDeviceReference(err error) bool {
	return kindOf(err) == KindDanglingDeviceReference
}

// IsDuplicateDeviceID returns true if the error is a duplicate device id.
func IsDuplicateDeviceID(err error) bool {
	return kindOf(err) == KindDuplicateDeviceID
}

// IsDuplicateVMID returns true if the error is a duplicate vmid.
func IsDuplicateVMID(err error) bool {
	return kindOf(err) == KindDuplicateVMID
}

func kindOf(err error) ErrorKind {
	var e *ConfigError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
