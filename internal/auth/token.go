package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/balu-property/damage-service/internal/domain"
)

const (
	purposeAccess = "access"
	purposeShare  = "damage_share"
)

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute}
}

// Claims describes JWT payload. The actor id travels in the registered "sub" claim.
type Claims struct {
	Role     domain.Role `json:"role"`
	Purpose  string      `json:"purpose"`
	TicketID string      `json:"ticket_id,omitempty"`
	jwt.RegisteredClaims
}

// Actor returns the identity carried by the token.
func (c *Claims) Actor() domain.Actor {
	return domain.Actor{ID: c.Subject, Role: c.Role}
}

// GenerateToken builds and signs an access token for the actor.
func (tm *TokenManager) GenerateToken(actor domain.Actor) (string, time.Time, error) {
	return tm.sign(actor, purposeAccess, "", tm.ttl)
}

// ParseToken validates an access token and returns its claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	return tm.parse(tokenStr, purposeAccess)
}

// IssueShareToken signs a read-only link token for one ticket. The embedded actor is
// impersonated when the link is opened.
func (tm *TokenManager) IssueShareToken(ticketID string, actor domain.Actor, ttl time.Duration) (string, time.Time, error) {
	return tm.sign(actor, purposeShare, ticketID, ttl)
}

// ParseShareToken validates a share token and checks it was issued for ticketID.
func (tm *TokenManager) ParseShareToken(tokenStr, ticketID string) (domain.Actor, error) {
	claims, err := tm.parse(tokenStr, purposeShare)
	if err != nil {
		return domain.Actor{}, err
	}
	if claims.TicketID != ticketID {
		return domain.Actor{}, errors.New("share token issued for another damage")
	}
	return claims.Actor(), nil
}

func (tm *TokenManager) sign(actor domain.Actor, purpose, ticketID string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		Role:     actor.Role,
		Purpose:  purpose,
		TicketID: ticketID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

func (tm *TokenManager) parse(tokenStr, purpose string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Purpose != purpose {
		return nil, errors.New("token not valid for this use")
	}
	if claims.Subject == "" || !claims.Role.IsValid() {
		return nil, errors.New("token carries no usable actor")
	}
	return claims, nil
}
