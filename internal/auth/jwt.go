package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pliu/chatvideo/internal/models"
	"github.com/pliu/chatvideo/internal/store"
)

const accessTokenType = "access"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrInactiveUser = errors.New("user is inactive")
)

// Claims identify the user by username in sub, like the login endpoint issues them.
type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Identity is the outcome of a successful verification.
type Identity struct {
	UserID   int64
	Username string
	IsActive bool
}

// UserLookup is the slice of the store the verifier needs.
type UserLookup interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs an access token for user.
func (i *Issuer) Issue(user *models.User) (string, error) {
	now := i.now()
	claims := Claims{
		Type: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

type Verifier struct {
	secret []byte
	users  UserLookup
}

func NewVerifier(secret string, users UserLookup) *Verifier {
	return &Verifier{secret: []byte(secret), users: users}
}

// Verify checks the signature, expiry and type of token and resolves the
// user it names. An inactive user is reported with ErrInactiveUser and a
// populated Identity.
func (v *Verifier) Verify(ctx context.Context, token string) (Identity, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Method.Alg())
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Type != accessTokenType || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	user, err := v.users.GetUserByUsername(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return Identity{}, ErrInvalidToken
	} else if err != nil {
		return Identity{}, err
	}
	id := Identity{UserID: user.ID, Username: user.Username, IsActive: user.IsActive}
	if !user.IsActive {
		return id, ErrInactiveUser
	}
	return id, nil
}

// ParseBearerToken extracts the token from an Authorization header value.
func ParseBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header empty")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}
