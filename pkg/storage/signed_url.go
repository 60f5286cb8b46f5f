package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidToken covers malformed tokens and signature mismatches.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrTokenExpired is returned together with the decoded token once its expiry passed.
	ErrTokenExpired = errors.New("download token expired")
)

const tokenVersion = "v1"

// DownloadToken is the payload carried by a signed export link.
type DownloadToken struct {
	JobID     string
	Path      string
	ExpiresAt time.Time
}

// SignedURLSigner issues and verifies HMAC-SHA256 download tokens. A token
// has the form v1.<payload>.<signature>, both parts base64url encoded.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner returns a signer whose tokens live for ttl (24h when unset).
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate signs a link to relPath for jobID.
func (s *SignedURLSigner) Generate(jobID, relPath string) (string, time.Time, error) {
	if jobID == "" || relPath == "" {
		return "", time.Time{}, errors.New("job id and path are required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("signing secret missing")
	}
	tok := DownloadToken{JobID: jobID, Path: relPath, ExpiresAt: s.now().Add(s.ttl).Truncate(time.Second)}
	payload := base64.RawURLEncoding.EncodeToString([]byte(encodePayload(tok)))
	return tokenVersion + "." + payload + "." + s.sign(payload), tok.ExpiresAt, nil
}

// Verify checks the signature and expiry of raw. An expired but authentic
// token is returned alongside ErrTokenExpired.
func (s *SignedURLSigner) Verify(raw string) (DownloadToken, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 || parts[0] != tokenVersion {
		return DownloadToken{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(s.sign(parts[1])), []byte(parts[2])) {
		return DownloadToken{}, ErrInvalidToken
	}
	decoded, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return DownloadToken{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	tok, err := decodePayload(string(decoded))
	if err != nil {
		return DownloadToken{}, err
	}
	if s.now().After(tok.ExpiresAt) {
		return tok, ErrTokenExpired
	}
	return tok, nil
}

// Parse is Verify in the tuple form used by the export service. With
// allowExpired set, an expired token still yields its job and path.
func (s *SignedURLSigner) Parse(raw string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	tok, err := s.Verify(raw)
	if errors.Is(err, ErrTokenExpired) && allowExpired {
		err = nil
	}
	if err != nil {
		return "", "", time.Time{}, err
	}
	return tok.JobID, tok.Path, tok.ExpiresAt, nil
}

func (s *SignedURLSigner) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(tokenVersion + "." + payload)) //nolint:errcheck
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func encodePayload(tok DownloadToken) string {
	return strings.Join([]string{tok.JobID, strconv.FormatInt(tok.ExpiresAt.Unix(), 10), tok.Path}, "\n")
}

func decodePayload(raw string) (DownloadToken, error) {
	fields := strings.SplitN(raw, "\n", 3)
	if len(fields) != 3 || fields[0] == "" || fields[2] == "" {
		return DownloadToken{}, ErrInvalidToken
	}
	exp, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return DownloadToken{}, fmt.Errorf("%w: bad expiry", ErrInvalidToken)
	}
	return DownloadToken{JobID: fields[0], Path: fields[2], ExpiresAt: time.Unix(exp, 0)}, nil
}
