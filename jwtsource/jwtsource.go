// Package jwtsource provides a SessionSource that resolves the current
// session snapshot from a JWT issued by the identity provider.
//
// Signing keys are fetched from a standard JWKS endpoint (RFC 7517),
// cached locally, and refreshed on demand; concurrent refreshes are
// deduplicated. The raw token comes from an injected TokenProvider (a
// cookie, a header, local storage — whatever the host application
// uses), so the source itself never talks to the provider's login
// endpoints.
//
// An absent or invalid token is not an error: it resolves to an
// initialized, anonymous session, which the bootstrap controller and
// access gate then handle as unauthenticated.
package jwtsource

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	appshell "github.com/fleetdesk/appshell-go"
)

// TokenProvider returns the current raw token, or "" when logged out.
type TokenProvider func() string

// Source implements appshell.SessionSource from JWT claims.
type Source struct {
	jwksURL         string
	tokens          TokenProvider
	httpClient      *http.Client
	refreshInterval time.Duration

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey // kid → public key
	lastFetch time.Time
	resolved  bool

	sf singleflight.Group
}

// compile-time check
var _ appshell.SessionSource = (*Source)(nil)

// Option configures the Source.
type Option func(*Source)

// WithHTTPClient sets a custom HTTP client for fetching JWKS.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) { s.httpClient = c }
}

// WithRefreshInterval sets how often cached keys are refreshed.
// Default: 1 hour.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Source) { s.refreshInterval = d }
}

// New creates a JWT-backed session source.
func New(jwksURL string, tokens TokenProvider, opts ...Option) *Source {
	s := &Source{
		jwksURL:         jwksURL,
		tokens:          tokens,
		httpClient:      &http.Client{Timeout: 10 * time.Second},
		refreshInterval: 1 * time.Hour,
		keys:            make(map[string]*rsa.PublicKey),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Snapshot resolves the current session. The first completed call marks
// the session initialized; an unverifiable token yields an anonymous
// initialized session rather than an error.
func (s *Source) Snapshot(ctx context.Context) (appshell.Session, error) {
	defer func() {
		s.mu.Lock()
		s.resolved = true
		s.mu.Unlock()
	}()

	token := s.tokens()
	if token == "" {
		return appshell.Session{Initialized: true}, nil
	}

	claims, err := s.verify(ctx, token)
	if err != nil {
		// Expired or tampered tokens resolve as anonymous; only a key
		// infrastructure failure with nothing cached propagates.
		if isKeyFetchError(err) {
			return appshell.Session{Initialized: s.wasResolved(), Loading: true},
				fmt.Errorf("appshell/jwtsource: %w", err)
		}
		return appshell.Session{Initialized: true}, nil
	}

	return sessionFromClaims(claims), nil
}

func (s *Source) wasResolved() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolved
}

// verify validates the JWT signature and returns its claims.
func (s *Source) verify(ctx context.Context, tokenString string) (jwt.MapClaims, error) {
	parser := jwt.NewParser(jwt.WithExpirationRequired())

	token, err := parser.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		return s.getKey(ctx, kid)
	})
	if err != nil {
		return nil, err
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return mapClaims, nil
}

// getKey returns the RSA public key for the given kid, fetching or
// refreshing the JWKS as needed.
func (s *Source) getKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.RLock()
	key, found := s.keys[kid]
	stale := time.Since(s.lastFetch) > s.refreshInterval
	s.mu.RUnlock()

	if found && !stale {
		return key, nil
	}

	// Deduplicate concurrent refreshes across goroutines.
	_, err, _ := s.sf.Do("jwks-refresh", func() (interface{}, error) {
		return nil, s.refresh(ctx)
	})
	if err != nil {
		if found {
			return key, nil // use stale key if refresh fails
		}
		return nil, &keyFetchError{err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if key, ok := s.keys[kid]; ok {
		return key, nil
	}

	// No kid specified — use the first available key
	if kid == "" {
		for _, k := range s.keys {
			return k, nil
		}
	}

	return nil, fmt.Errorf("key not found for kid %q", kid)
}

// refresh fetches the JWKS from the configured URL and updates the cache.
func (s *Source) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	var jwksResp jwksResponse
	if err := json.NewDecoder(resp.Body).Decode(&jwksResp); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwksResp.Keys))
	for _, jwk := range jwksResp.Keys {
		if jwk.Kty != "RSA" || (jwk.Use != "" && jwk.Use != "sig") {
			continue
		}
		pub, err := jwk.rsaPublicKey()
		if err != nil {
			continue // skip malformed keys
		}
		keys[jwk.Kid] = pub
	}

	if len(keys) == 0 {
		return fmt.Errorf("no valid RSA signing keys found")
	}

	s.mu.Lock()
	s.keys = keys
	s.lastFetch = time.Now()
	s.mu.Unlock()

	return nil
}

// keyFetchError marks failures to obtain signing keys, as opposed to a
// token that failed verification against known keys.
type keyFetchError struct{ err error }

func (e *keyFetchError) Error() string { return e.err.Error() }
func (e *keyFetchError) Unwrap() error { return e.err }

func isKeyFetchError(err error) bool {
	var kfe *keyFetchError
	return errors.As(err, &kfe)
}

// JWKS JSON types

type jwksResponse struct {
	Keys []jwkKey `json:"keys"`
}

type jwkKey struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k *jwkKey) rsaPublicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

// sessionFromClaims maps verified JWT claims to a settled session.
//
// Expected claims: sub, email, name, role, and permissions as a list of
// "resource:action" strings.
func sessionFromClaims(m jwt.MapClaims) appshell.Session {
	s := appshell.Session{Initialized: true}

	user := &appshell.User{}
	if v, ok := m["sub"].(string); ok {
		user.ID = v
	}
	if v, ok := m["email"].(string); ok {
		user.Email = v
	}
	if v, ok := m["name"].(string); ok {
		user.Name = v
	}
	if user.ID == "" {
		return s
	}
	s.User = user

	if v, ok := m["role"].(string); ok {
		s.ActiveRole = appshell.Role(v)
	}

	if perms, ok := m["permissions"].([]interface{}); ok {
		for _, p := range perms {
			str, ok := p.(string)
			if !ok {
				continue
			}
			res, act, found := strings.Cut(str, ":")
			if !found || res == "" || act == "" {
				continue
			}
			s.Permissions = append(s.Permissions, appshell.Permission{Resource: res, Action: act})
		}
	}

	return s
}
