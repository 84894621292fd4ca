package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/bryanwahyu/learncode/internal/application"
	"github.com/bryanwahyu/learncode/internal/domain/analysis"
	"github.com/bryanwahyu/learncode/internal/domain/user"
)

// ErrUnauthenticated is returned for missing, expired or forged tokens.
var ErrUnauthenticated = errors.New("unauthenticated")

const issuer = "learncode.life"

// Identity is the resolved caller of a request.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
}

// Owner maps the identity onto the ownership predicate used by analyses.
func (i Identity) Owner() analysis.Owner {
	return analysis.Owner{UserID: i.UserID, LegacyID: i.Email}
}

// Session is an issued session token.
type Session struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      *user.User `json:"user"`
}

// Claims carried by a session token. Provisional tokens were issued while the
// user store was unavailable and carry the federated subject as Subject.
type Claims struct {
	Email       string `json:"email,omitempty"`
	FederatedID string `json:"fid,omitempty"`
	Provisional bool   `json:"prov,omitempty"`
	jwt.RegisteredClaims
}

// Service issues and resolves session tokens.
type Service struct {
	users  user.Repository
	secret []byte
	ttl    time.Duration
	clock  application.Clock
}

func NewService(users user.Repository, secret string, ttl time.Duration, clock application.Clock) *Service {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &Service{users: users, secret: []byte(secret), ttl: ttl, clock: clock}
}

// SignIn finds or creates the local user for a federated login and issues a
// token for its local id.
func (s *Service) SignIn(ctx context.Context, fi user.FederatedIdentity) (*Session, error) {
	fi.Email = strings.ToLower(strings.TrimSpace(fi.Email))
	fi.Subject = strings.TrimSpace(fi.Subject)
	if fi.Email == "" {
		return nil, fmt.Errorf("%w: email is required", application.ErrInvalidInput)
	}
	if fi.Subject == "" {
		return nil, fmt.Errorf("%w: subject is required", application.ErrInvalidInput)
	}

	claims := Claims{Email: fi.Email, FederatedID: fi.Subject}
	u, err := s.users.FindOrCreate(ctx, fi)
	if err != nil {
		log.Error().Err(err).Str("email", fi.Email).Msg("find or create user failed, issuing provisional session")
		u = &user.User{ID: fi.Subject, Email: fi.Email, Name: fi.Name, Image: fi.Image}
		claims.Provisional = true
	}
	claims.Subject = u.ID

	tok, exp, err := s.sign(claims)
	if err != nil {
		return nil, err
	}
	return &Session{Token: tok, ExpiresAt: exp, User: u}, nil
}

func (s *Service) sign(c Claims) (string, time.Time, error) {
	now := s.clock.Now()
	exp := now.Add(s.ttl)
	c.Issuer = issuer
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(exp)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing session token: %w", err)
	}
	return tok, exp, nil
}

// Resolve validates a token and returns the caller identity.
func (s *Service) Resolve(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}
	var c Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.clock.Now),
	)
	parsed, err := parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}

	id := Identity{UserID: c.Subject, Email: c.Email}
	if c.Provisional && c.FederatedID != "" {
		if u, err := s.users.GetByFederatedID(ctx, c.FederatedID); err == nil {
			id.UserID = u.ID
		}
	}
	return id, nil
}
