package kerbalx

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Identity names a program calling the API. Signature is a content hash of
// the calling binary, reported to KerbalX but never used for authorization.
type Identity struct {
	Name      string
	Version   string
	Signature string
}

// Key is the identity's registry and waiter key.
func (id Identity) Key() string {
	return id.Name + "-" + id.Version
}

// Valid reports whether both name and version are set.
func (id Identity) Valid() bool {
	return strings.TrimSpace(id.Name) != "" && strings.TrimSpace(id.Version) != ""
}

// NewIdentity builds an identity signed with the running executable. A
// signing failure leaves Signature empty.
func NewIdentity(name, version string) Identity {
	id := Identity{Name: name, Version: version}
	if exe, err := os.Executable(); err == nil {
		if sig, err := SignatureOf(exe); err == nil {
			id.Signature = sig
		}
	}
	return id
}

// SignatureOf returns the hex BLAKE2b-256 digest of the file at path.
func SignatureOf(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
