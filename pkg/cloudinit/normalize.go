package cloudinit

import (
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/k3sforge/k3sforge/pkg/config"
)

// Normalize canonicalizes one user entry from the configuration into its
// document form. path is the configuration path of the entry, used in logs
// and errors.
//
// The bool result reports whether the entry survived: an entry without a
// resolvable username after alias resolution is skipped with a warning,
// never treated as fatal. A user carrying both password forms is a
// PasswordModeConflict; the schema validator catches this first on the
// loading path, but Normalize re-checks so the invariant holds for
// programmatically built settings too.
func Normalize(u config.UserConfig, path string) (User, bool, error) {
	username := u.Username
	switch {
	case username == "" && u.Name != "":
		username = u.Name
	case username != "" && u.Name != "":
		log.Debug().
			Str("path", path).
			Str("username", username).
			Msg("both username and name are set, username wins")
	}
	if username == "" {
		log.Warn().
			Str("path", path).
			Msg("skipping user entry without a username")
		return User{}, false, nil
	}

	if u.HashedPasswd != "" && u.PlainTextPasswd != "" {
		return User{}, false, config.NewPasswordModeConflictError(path)
	}

	out := User{
		Name:              username,
		Gecos:             u.Gecos,
		PrimaryGroup:      u.PrimaryGroup,
		Groups:            slices.Clone(u.Groups),
		Shell:             config.DefaultShell,
		Sudo:              config.DefaultSudoRule,
		SSHAuthorizedKeys: slices.Clone(u.SSHKeys),
		HashedPasswd:      u.HashedPasswd,
		PlainTextPasswd:   u.PlainTextPasswd,
	}
	if u.Shell != "" {
		out.Shell = u.Shell
	}
	if u.Sudo != nil {
		out.Sudo = u.Sudo.Rule
		if !u.Sudo.Grant {
			out.Sudo = ""
		}
	}
	if u.LockPasswd != nil {
		out.LockPasswd = *u.LockPasswd
	}
	if u.System != nil {
		out.System = *u.System
	}

	return out, true, nil
}

// normalizeUsers runs Normalize over a settings-level user list, dropping
// skipped entries and keeping the survivors in declaration order.
func normalizeUsers(users []config.UserConfig, path string) ([]User, error) {
	out := make([]User, 0, len(users))
	for i, u := range users {
		normalized, ok, err := Normalize(u, indexPath(path, i))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, normalized)
		}
	}
	return out, nil
}
