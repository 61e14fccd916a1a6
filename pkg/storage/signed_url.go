package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken reports a download token that is malformed, forged or expired.
var ErrInvalidToken = errors.New("storage: invalid download token")

type downloadClaims struct {
	JobID string `json:"job"`
	Path  string `json:"path"`
	jwt.RegisteredClaims
}

// SignedURLSigner issues HS256 download tokens naming an export job and the
// stored object that holds its result.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate returns a signed token referencing the job and object path.
func (s *SignedURLSigner) Generate(jobID, objectPath string) (string, time.Time, error) {
	if jobID == "" || objectPath == "" {
		return "", time.Time{}, fmt.Errorf("job id and object path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)
	claims := downloadClaims{
		JobID: jobID,
		Path:  objectPath,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   jobID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign download token: %w", err)
	}
	return token, expiresAt.Truncate(time.Second), nil
}

// Parse validates a token and returns the embedded metadata. allowExpired
// skips the expiry check so cleanup can still locate stale objects.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (jobID, objectPath string, expiresAt time.Time, err error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	var claims downloadClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.JobID == "" || claims.Path == "" {
		return "", "", time.Time{}, ErrInvalidToken
	}
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return claims.JobID, claims.Path, expiresAt, nil
}
