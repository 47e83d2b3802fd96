package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"
)

// Claims carried by a session token. Role and profile fields are advisory:
// the middleware reloads them from the user store on every request.
type Claims struct {
	Name             string `json:"name,omitempty"`
	Email            string `json:"email,omitempty"`
	Role             string `json:"role,omitempty"`
	IsOAuth          bool   `json:"is_oauth"`
	TwoFactorEnabled bool   `json:"two_factor_enabled"`
	jwt.RegisteredClaims
}

// JwtIssuer signs session tokens with HS256
type JwtIssuer struct {
	Secret   string
	Issuer   string
	Audience string
}

func NewJwtIssuer(secret, issuer, audience string) *JwtIssuer {
	return &JwtIssuer{
		Secret:   secret,
		Issuer:   issuer,
		Audience: audience,
	}
}

// Sign returns the signed token for sess, valid from now until expiresAt
func (g *JwtIssuer) Sign(sess Session, now, expiresAt time.Time) (string, error) {
	claims := Claims{
		Name:             sess.Name,
		Email:            sess.Email,
		Role:             string(sess.Role),
		IsOAuth:          sess.IsOAuth,
		TwoFactorEnabled: sess.TwoFactorEnabled,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-1 * time.Minute)),
			Issuer:    g.Issuer,
			Subject:   sess.UserID.String(),
			ID:        uuid.New().String(),
		},
	}
	if g.Audience != "" {
		claims.Audience = jwt.ClaimStrings{g.Audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(g.Secret))
	if err != nil {
		slog.Error("Failed to sign session token", "user_id", sess.UserID, "error", err)
		return "", err
	}
	return ss, nil
}

// Parse validates tokenStr, including issuer and audience when configured,
// and returns its claims
func (g *JwtIssuer) Parse(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if g.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.Issuer))
	}
	if g.Audience != "" {
		opts = append(opts, jwt.WithAudience(g.Audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(g.Secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	return claims, nil
}

// JWTAuth returns a jwtauth verifier keyed with the same secret, for use
// with jwtauth.Verify in the router. It checks the same issuer and audience
// as Parse.
func (g *JwtIssuer) JWTAuth() *jwtauth.JWTAuth {
	var validate []jwxjwt.ValidateOption
	if g.Issuer != "" {
		validate = append(validate, jwxjwt.WithIssuer(g.Issuer))
	}
	if g.Audience != "" {
		validate = append(validate, jwxjwt.WithAudience(g.Audience))
	}
	return jwtauth.New("HS256", []byte(g.Secret), nil, validate...)
}
