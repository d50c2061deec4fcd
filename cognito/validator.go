package cognito

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidIssuer is returned when the token issuer is invalid
	ErrInvalidIssuer = errors.New("invalid issuer")

	// ErrInvalidAudience is returned when the token audience is invalid
	ErrInvalidAudience = errors.New("invalid audience")

	// ErrJWKSFetchFailed is returned when JWKS fetching fails
	ErrJWKSFetchFailed = errors.New("failed to fetch JWKS")

	// ErrNotConfigured is returned when no user pool is configured
	ErrNotConfigured = errors.New("cognito user pool is not configured")
)

// MinForcedRefreshInterval is the shortest gap between two JWKS refreshes
// triggered by an unknown kid
const MinForcedRefreshInterval = time.Minute

// JWKS represents the JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// CognitoValidator validates JWT tokens from AWS Cognito
type CognitoValidator struct {
	region     string
	userPoolID string
	clientID   string
	issuer     string
	jwksURL    string
	httpClient *http.Client
	now        func() time.Time

	// Cache for JWKS
	jwksCache    *JWKS
	jwksCacheExp time.Time
	jwksCacheTTL time.Duration
	lastForced   time.Time
	cacheMu      sync.RWMutex

	// Cache for parsed public keys
	keyCache   map[string]*rsa.PublicKey
	keyCacheMu sync.RWMutex
}

// Config holds configuration for CognitoValidator
type Config struct {
	Region      string
	UserPoolID  string
	ClientID    string
	JWKSURL     string // overrides the pool's well-known JWKS location
	CacheTTL    time.Duration
	HTTPTimeout time.Duration
}

// NewCognitoValidator creates a new Cognito JWT validator
func NewCognitoValidator(config Config) *CognitoValidator {
	if config.CacheTTL == 0 {
		config.CacheTTL = 1 * time.Hour
	}
	if config.HTTPTimeout == 0 {
		config.HTTPTimeout = 10 * time.Second
	}

	issuer := fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", config.Region, config.UserPoolID)
	jwksURL := config.JWKSURL
	if jwksURL == "" {
		jwksURL = issuer + "/.well-known/jwks.json"
	}

	return &CognitoValidator{
		region:       config.Region,
		userPoolID:   config.UserPoolID,
		clientID:     config.ClientID,
		issuer:       issuer,
		jwksURL:      jwksURL,
		jwksCacheTTL: config.CacheTTL,
		httpClient: &http.Client{
			Timeout: config.HTTPTimeout,
		},
		now:      time.Now,
		keyCache: make(map[string]*rsa.PublicKey),
	}
}

// Configured reports whether a user pool and client are set
func (v *CognitoValidator) Configured() bool {
	return v.userPoolID != "" && v.clientID != ""
}

// ValidateToken validates an ID or access token and returns parsed claims
func (v *CognitoValidator) ValidateToken(ctx context.Context, tokenString string) (*ParsedClaims, error) {
	if !v.Configured() {
		return nil, ErrNotConfigured
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, errors.New("kid header not found")
		}
		return v.getPublicKey(ctx, kid)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrJWKSFetchFailed):
			return nil, fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: %w: expected %s, got %s", ErrInvalidToken, ErrInvalidIssuer, v.issuer, claims.Issuer)
	}

	switch claims.TokenUse {
	case "id":
		if !containsAudience(claims.Audience, v.clientID) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrInvalidAudience)
		}
	case "access":
		if claims.ClientID != v.clientID {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrInvalidAudience)
		}
	default:
		return nil, fmt.Errorf("%w: invalid token_use: %s", ErrInvalidToken, claims.TokenUse)
	}

	parsed, err := parseClaims(claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return parsed, nil
}

// FetchJWKS fetches the JWKS from Cognito
func (v *CognitoValidator) FetchJWKS(ctx context.Context) (*JWKS, error) {
	v.cacheMu.RLock()
	if v.jwksCache != nil && v.now().Before(v.jwksCacheExp) {
		defer v.cacheMu.RUnlock()
		return v.jwksCache, nil
	}
	v.cacheMu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status code %d", ErrJWKSFetchFailed, resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrJWKSFetchFailed, err)
	}

	v.cacheMu.Lock()
	v.jwksCache = &jwks
	v.jwksCacheExp = v.now().Add(v.jwksCacheTTL)
	v.cacheMu.Unlock()

	return &jwks, nil
}

// getPublicKey retrieves the public key for a given kid. An unknown kid
// forces one JWKS refresh since the pool may have rotated its keys, at most
// once per MinForcedRefreshInterval.
func (v *CognitoValidator) getPublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.keyCacheMu.RLock()
	if key, exists := v.keyCache[kid]; exists {
		v.keyCacheMu.RUnlock()
		return key, nil
	}
	v.keyCacheMu.RUnlock()

	jwk, err := v.findKey(ctx, kid)
	if err != nil {
		return nil, err
	}
	if jwk == nil && v.forceRefresh() {
		if jwk, err = v.findKey(ctx, kid); err != nil {
			return nil, err
		}
	}
	if jwk == nil {
		return nil, fmt.Errorf("key with kid %s not found in JWKS", kid)
	}

	publicKey, err := jwkToRSAPublicKey(jwk)
	if err != nil {
		return nil, fmt.Errorf("failed to convert JWK to RSA public key: %w", err)
	}

	v.keyCacheMu.Lock()
	v.keyCache[kid] = publicKey
	v.keyCacheMu.Unlock()

	return publicKey, nil
}

func (v *CognitoValidator) findKey(ctx context.Context, kid string) (*JWK, error) {
	jwks, err := v.FetchJWKS(ctx)
	if err != nil {
		return nil, err
	}
	for i := range jwks.Keys {
		if jwks.Keys[i].Kid == kid {
			return &jwks.Keys[i], nil
		}
	}
	return nil, nil
}

// forceRefresh drops the cached key set unless that already happened within
// MinForcedRefreshInterval
func (v *CognitoValidator) forceRefresh() bool {
	v.cacheMu.Lock()
	defer v.cacheMu.Unlock()

	now := v.now()
	if !v.lastForced.IsZero() && now.Sub(v.lastForced) < MinForcedRefreshInterval {
		return false
	}
	v.lastForced = now
	v.jwksCache = nil
	v.jwksCacheExp = time.Time{}
	return true
}

// jwkToRSAPublicKey converts a JWK to an RSA public key
func jwkToRSAPublicKey(jwk *JWK) (*rsa.PublicKey, error) {
	if jwk.Kty != "" && jwk.Kty != "RSA" {
		return nil, fmt.Errorf("unsupported key type %s", jwk.Kty)
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	var e int
	for _, b := range eBytes {
		e = e*256 + int(b)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}

func containsAudience(audiences jwt.ClaimStrings, clientID string) bool {
	for _, aud := range audiences {
		if aud == clientID {
			return true
		}
	}
	return false
}

// InvalidateCache invalidates the JWKS cache
func (v *CognitoValidator) InvalidateCache() {
	v.cacheMu.Lock()
	defer v.cacheMu.Unlock()
	v.jwksCache = nil
	v.jwksCacheExp = time.Time{}

	v.keyCacheMu.Lock()
	defer v.keyCacheMu.Unlock()
	v.keyCache = make(map[string]*rsa.PublicKey)
}
