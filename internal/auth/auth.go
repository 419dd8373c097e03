package auth

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// CookieName is the cookie the credential issuer sets on login.
const CookieName = "jwt"

var (
	// ErrNoCookie means the handshake carried no session cookie at all.
	ErrNoCookie = errors.New("no session cookie")
	// ErrInvalidToken covers bad signatures, expiry and malformed claims.
	ErrInvalidToken = errors.New("invalid token")
)

// Session is the verified identity attached to a connection.
type Session struct {
	UserID string
}

// VerifyRequest extracts the session cookie from an incoming handshake
// request and validates it. The connection must be refused when this
// returns an error; there is nothing transient to retry.
func VerifyRequest(r *http.Request, secret string) (*Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, ErrNoCookie
	}
	return VerifyToken(c.Value, secret)
}

// VerifyToken parses and validates a signed session token and returns
// the embedded identity.
func VerifyToken(tokenString string, secret string) (*Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID := claimString(claims, "id")
	if userID == "" {
		// Older tokens carry the Mongo-style field name.
		userID = claimString(claims, "_id")
	}
	if userID == "" {
		return nil, errors.Wrap(ErrInvalidToken, "token has no user id")
	}

	return &Session{UserID: userID}, nil
}

// MintToken creates a signed session token for a user. Used by tests
// and the mktoken utility; real credential issuance lives in the auth
// service, not here.
func MintToken(userID string, secret string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"id":  userID,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func claimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
