package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getbindu/bindu/pkg/protocol"
)

// testIssuer serves a JWKS endpoint for a freshly generated RSA key and signs
// tokens with it.
type testIssuer struct {
	key    jwk.Key
	server *httptest.Server
}

func newTestIssuer(t *testing.T) *testIssuer {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	key, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, "test-key"))
	require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.RS256))

	public, err := key.PublicKey()
	require.NoError(t, err)
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(public))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(srv.Close)

	return &testIssuer{key: key, server: srv}
}

func (i *testIssuer) sign(t *testing.T, build func(b *jwt.Builder)) string {
	t.Helper()
	b := jwt.NewBuilder().
		Subject("user-1").
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour))
	build(b)
	token, err := b.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, i.key))
	require.NoError(t, err)
	return string(signed)
}

func TestValidateToken(t *testing.T) {
	issuer := newTestIssuer(t)
	v, err := NewJWTValidator(context.Background(), issuer.server.URL, "", "")
	require.NoError(t, err)

	signed := issuer.sign(t, func(b *jwt.Builder) {
		b.Claim("email", "user@example.com").Claim("role", "admin")
	})

	claims, err := v.ValidateToken(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	issuer := newTestIssuer(t)
	v, err := NewJWTValidator(context.Background(), issuer.server.URL, "", "")
	require.NoError(t, err)

	signed := issuer.sign(t, func(b *jwt.Builder) {
		b.Expiration(time.Now().Add(-time.Hour))
	})

	_, err = v.ValidateToken(context.Background(), signed)
	assert.Error(t, err)
}

func TestValidateTokenChecksIssuerAndAudience(t *testing.T) {
	issuer := newTestIssuer(t)
	v, err := NewJWTValidator(context.Background(), issuer.server.URL,
		"https://issuer.example.com", "bindu")
	require.NoError(t, err)

	good := issuer.sign(t, func(b *jwt.Builder) {
		b.Issuer("https://issuer.example.com").Audience([]string{"bindu"})
	})
	_, err = v.ValidateToken(context.Background(), good)
	assert.NoError(t, err)

	wrongIssuer := issuer.sign(t, func(b *jwt.Builder) {
		b.Issuer("https://other.example.com").Audience([]string{"bindu"})
	})
	_, err = v.ValidateToken(context.Background(), wrongIssuer)
	assert.Error(t, err)
}

func TestNewJWTValidatorUnreachableJWKS(t *testing.T) {
	_, err := NewJWTValidator(context.Background(), "http://127.0.0.1:1/jwks", "", "")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	issuer := newTestIssuer(t)
	v, err := NewJWTValidator(context.Background(), issuer.server.URL, "", "")
	require.NoError(t, err)

	var gotClaims *Claims
	handler := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = GetClaims(r)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token passes and attaches claims", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+issuer.sign(t, func(*jwt.Builder) {}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotClaims)
		assert.Equal(t, "user-1", gotClaims.Subject)
		assert.Equal(t, "user-1", req.Header.Get("X-Auth-Subject"))
	})

	t.Run("missing header gets a 401 protocol envelope", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		var resp protocol.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, protocol.CodeInvalidToken, resp.Error.Code)
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestMiddlewareNilValidatorPassesThrough(t *testing.T) {
	handler := Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
