package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Tag     = "pbkdf2-sha256"
	pbkdf2SaltLen = 16
	pbkdf2KeyLen  = 32
)

type recordFormat int

const (
	formatUnknown recordFormat = iota
	formatPBKDF2
	// formatLegacyDigest is the pre-migration shape: a bare, unsalted SHA-256
	// digest. Accepted for verification only, never produced.
	formatLegacyDigest
)

// passwordRecord is the parsed form of a serialized password record. The
// format discriminator keeps the legacy migration path explicit.
type passwordRecord struct {
	format     recordFormat
	iterations int
	salt       []byte
	key        []byte
}

// Hasher derives and verifies password records using salted, iterated
// PBKDF2-SHA256. It holds no mutable state and is safe for concurrent use.
type Hasher struct {
	iterations int
	logger     Logger
}

var _ PasswordAuthenticator = (*Hasher)(nil)

// NewHasher builds a Hasher with the configured iteration count.
func NewHasher(cfg *Config) *Hasher {
	iterations := DefaultPBKDF2Iterations
	if cfg != nil && cfg.PBKDF2Iterations > 0 {
		iterations = cfg.PBKDF2Iterations
	}
	return &Hasher{
		iterations: iterations,
		logger:     defLogger{},
	}
}

func (h *Hasher) WithLogger(logger Logger) *Hasher {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// HashPassword derives a fresh record for password. Every record produced
// here uses the current format; the legacy shape is never written.
// Serialized as $pbkdf2-sha256$i=<iterations>$<b64 salt>$<b64 key> so
// verification is self-describing.
func (h *Hasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	salt := make([]byte, pbkdf2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate password salt")
	}

	key := pbkdf2.Key([]byte(password), salt, h.iterations, pbkdf2KeyLen, sha256.New)

	return fmt.Sprintf("$%s$i=%d$%s$%s",
		pbkdf2Tag,
		h.iterations,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword re-derives a key using the record's own parameters and
// compares in constant time. It fails closed: any malformed record yields
// false, never an error the caller could mishandle.
func (h *Hasher) VerifyPassword(password, record string) bool {
	if password == "" || record == "" {
		return false
	}

	parsed, err := parsePasswordRecord(record)
	if err != nil {
		h.logger.Debug("password record rejected: %v", err)
		return false
	}

	var candidate []byte
	switch parsed.format {
	case formatPBKDF2:
		candidate = pbkdf2.Key([]byte(password), parsed.salt, parsed.iterations, len(parsed.key), sha256.New)
	case formatLegacyDigest:
		sum := sha256.Sum256([]byte(password))
		candidate = sum[:]
	default:
		return false
	}

	if subtle.ConstantTimeCompare(parsed.key, candidate) != 1 {
		return false
	}

	if parsed.format == formatLegacyDigest {
		// Correct password against a pre-migration record: the account should
		// be rehashed on this login. See NeedsRehash.
		h.logger.Warn("legacy unsalted password record verified; schedule rehash")
	}

	return true
}

// NeedsRehash reports whether a record that verified should be upgraded to
// the current format or work factor.
func (h *Hasher) NeedsRehash(record string) bool {
	parsed, err := parsePasswordRecord(record)
	if err != nil {
		return false
	}
	if parsed.format == formatLegacyDigest {
		return true
	}
	return parsed.iterations < h.iterations
}

func parsePasswordRecord(record string) (passwordRecord, error) {
	if !strings.HasPrefix(record, "$") {
		return parseLegacyRecord(record)
	}

	parts := strings.Split(record, "$")
	// "$tag$i=N$salt$key" splits into 5 parts with a leading empty segment.
	if len(parts) != 5 || parts[0] != "" {
		return passwordRecord{}, goerrors.New("invalid password record structure", goerrors.CategoryBadInput)
	}
	if parts[1] != pbkdf2Tag {
		return passwordRecord{}, goerrors.New("unrecognized password record algorithm", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"algorithm": parts[1]})
	}

	rawIterations, ok := strings.CutPrefix(parts[2], "i=")
	if !ok {
		return passwordRecord{}, goerrors.New("invalid password record iteration field", goerrors.CategoryBadInput)
	}
	iterations, err := strconv.Atoi(rawIterations)
	if err != nil || iterations < 1 {
		return passwordRecord{}, goerrors.New("invalid password record iteration count", goerrors.CategoryBadInput)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return passwordRecord{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid password record salt")
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return passwordRecord{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid password record key")
	}
	if len(salt) == 0 || len(key) == 0 {
		return passwordRecord{}, goerrors.New("empty password record material", goerrors.CategoryBadInput)
	}

	return passwordRecord{
		format:     formatPBKDF2,
		iterations: iterations,
		salt:       salt,
		key:        key,
	}, nil
}

func parseLegacyRecord(record string) (passwordRecord, error) {
	digest, err := base64.StdEncoding.DecodeString(record)
	if err != nil {
		return passwordRecord{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "unrecognized password record")
	}
	if len(digest) != sha256.Size {
		return passwordRecord{}, goerrors.New("unrecognized password record digest length", goerrors.CategoryBadInput)
	}
	return passwordRecord{
		format: formatLegacyDigest,
		key:    digest,
	}, nil
}
