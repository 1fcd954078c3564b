package usecase

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cantera/papers-backend/internal/config"
	"github.com/cantera/papers-backend/internal/domain"
)

var (
	// ErrInvalidSignature means the token was present but its signature did
	// not verify. Callers must treat this differently from an absent token:
	// tampered, not merely anonymous.
	ErrInvalidSignature = errors.New("session token signature mismatch")
	ErrInvalidSession   = errors.New("invalid session token")
)

// authPurpose salts the signing key for the auth cookie. Each logical cookie
// purpose gets its own salt so a token minted for one purpose cannot be
// replayed as another.
const authPurpose = "cantera-papers-auth"

// SessionCodec issues and verifies the signed, stateless session token
// carried in the auth cookie. The token is signed, not sealed: its payload
// is readable by the client and must not contain anything the client is not
// already trusted to know about itself.
type SessionCodec struct {
	key        []byte
	cookieName string
	maxAge     time.Duration
}

type sessionClaims struct {
	Actor domain.Actor `json:"actor"`
	jwt.RegisteredClaims
}

func NewSessionCodec(cfg *config.SessionConfig) *SessionCodec {
	return &SessionCodec{
		key:        deriveKey(cfg.Secret, authPurpose),
		cookieName: cfg.CookieName,
		maxAge:     cfg.MaxAge,
	}
}

// deriveKey binds the signing key to a single cookie purpose.
func deriveKey(secret, purpose string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(purpose))
	return mac.Sum(nil)
}

// Issue serializes the actor into a signed token.
func (c *SessionCodec) Issue(actor *domain.Actor) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Actor: *actor,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.Display,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.maxAge)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.key)
}

// Verify checks the token signature in constant time and returns the encoded
// actor. A signature mismatch yields ErrInvalidSignature; any other defect
// (expiry, malformed payload) yields ErrInvalidSession.
func (c *SessionCodec) Verify(tokenString string) (*domain.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &sessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return c.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrInvalidSignature
		}
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSession
	}

	return &claims.Actor, nil
}

func (c *SessionCodec) CookieName() string {
	return c.cookieName
}

// SetCookie attaches the token to the response. HttpOnly forbids script
// access, Secure requires transport encryption, and SameSite=Strict forbids
// cross-site sending; the codec's integrity guarantees assume all three.
func (c *SessionCodec) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// ClearCookie instructs the client to delete the cookie. There is no
// server-side blacklist: an already-issued token stays valid until it
// expires or the signing secret is rotated.
func (c *SessionCodec) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}
