package cloudinit

import (
	"bytes"
	"fmt"

	"github.com/GehirnInc/crypt"
	"gopkg.in/yaml.v3"

	// Register the crypt(3) hash implementations.
	_ "github.com/GehirnInc/crypt/sha256_crypt"
	_ "github.com/GehirnInc/crypt/sha512_crypt"
)

// HashMethod selects the crypt(3) scheme used for password pre-hashing.
type HashMethod string

const (
	// HashSHA512 is sha512-crypt ($6$), the default.
	HashSHA512 HashMethod = "sha512"

	// HashSHA256 is sha256-crypt ($5$).
	HashSHA256 HashMethod = "sha256"
)

func (m HashMethod) crypter() (crypt.Crypter, error) {
	switch m {
	case HashSHA512:
		return crypt.SHA512.New(), nil
	case HashSHA256:
		return crypt.SHA256.New(), nil
	}
	return nil, fmt.Errorf("unsupported hash method %q, use %q or %q", m, HashSHA256, HashSHA512)
}

// RenderOption configures Render.
type RenderOption func(*renderOptions)

type renderOptions struct {
	hashPasswords bool
	hashMethod    HashMethod
}

// WithHashedPasswords converts plain_text_passwd entries to hashed_passwd
// before rendering, so plain-text passwords never land on snippet storage.
// Hashing uses a random salt, which makes the rendered bytes
// non-deterministic; callers relying on byte-identical output must not use
// this option.
func WithHashedPasswords(method HashMethod) RenderOption {
	return func(o *renderOptions) {
		o.hashPasswords = true
		o.hashMethod = method
	}
}

// Render serializes the document to cloud-init user-data: the
// "#cloud-config" header followed by the YAML encoding. Empty optional
// fields are omitted, because cloud-init's schema rejects constructs like
// an empty groups list. The input document is not modified.
func Render(doc *Document, opts ...RenderOption) ([]byte, error) {
	options := renderOptions{hashMethod: HashSHA512}
	for _, opt := range opts {
		opt(&options)
	}

	out := doc.Clone()
	if options.hashPasswords {
		if err := hashPasswords(out, options.hashMethod); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	buf.WriteString("#cloud-config\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encoding user-data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding user-data: %w", err)
	}
	return buf.Bytes(), nil
}

// HashPassword hashes a plain-text password with the given crypt(3)
// scheme and a random salt.
func HashPassword(password string, method HashMethod) (string, error) {
	c, err := method.crypter()
	if err != nil {
		return "", err
	}
	hash, err := c.Generate([]byte(password), nil)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return hash, nil
}

func hashPasswords(doc *Document, method HashMethod) error {
	for i := range doc.Users {
		u := &doc.Users[i]
		if u.PlainTextPasswd == "" {
			continue
		}
		hash, err := HashPassword(u.PlainTextPasswd, method)
		if err != nil {
			return fmt.Errorf("user %q: %w", u.Name, err)
		}
		u.HashedPasswd = hash
		u.PlainTextPasswd = ""
	}
	return nil
}
