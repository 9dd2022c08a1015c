package muser

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

type ArgonParams struct {
	Memory  uint32 // KiB
	Time    uint32
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

func DefaultArgonParams() ArgonParams {
	return ArgonParams{
		Memory:  64 * 1024,
		Time:    1,
		Threads: 4,
		SaltLen: 16,
		KeyLen:  32,
	}
}

// HashPassword returns a PHC string: $argon2id$v=19$m=...,t=...,p=...$salt$hash
func HashPassword(pw string, p ArgonParams) (string, error) {
	if strings.TrimSpace(pw) == "" {
		return "", errors.New("empty password")
	}
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(pw), salt, p.Time, p.Memory, p.Threads, p.KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword checks pw against a PHC string produced by HashPassword.
// Malformed or empty hashes never match.
func VerifyPassword(pw, phc string) bool {
	p, salt, want, ok := parsePHC(phc)
	if !ok {
		return false
	}
	got := argon2.IDKey([]byte(pw), salt, p.Time, p.Memory, p.Threads, uint32(len(want)))

	return subtle.ConstantTimeCompare(got, want) == 1
}

func parsePHC(phc string) (ArgonParams, []byte, []byte, bool) {
	// ["", "argon2id", "v=19", "m=...,t=...,p=...", "<salt>", "<key>"]
	parts := strings.Split(phc, "$")
	if len(parts) != 6 || parts[1] != "argon2id" || !strings.HasPrefix(parts[2], "v=") {
		return ArgonParams{}, nil, nil, false
	}

	var p ArgonParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return ArgonParams{}, nil, nil, false
	}
	if p.Time < 1 || p.Threads < 1 {
		return ArgonParams{}, nil, nil, false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return ArgonParams{}, nil, nil, false
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return ArgonParams{}, nil, nil, false
	}

	return p, salt, key, true
}
