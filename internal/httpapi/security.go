package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/velamart/storefront/internal/domain/auth"
)

// apiKeyHeader carries the client's API key.
const apiKeyHeader = "X-API-Key"

// Security authenticates requests via HMAC-SHA256 hashed API keys and
// enforces role requirements.
type Security struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurity creates the auth middleware provider with the given API key
// repository and HMAC pepper.
func NewSecurity(apikeys auth.Repository, pepper []byte) *Security {
	return &Security{apikeys: apikeys, pepper: pepper}
}

// Authenticate resolves the caller's identity from the API key header and
// stores it in the request context. Requests without a valid key get 401.
func (s *Security) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(apiKeyHeader)
		if key == "" {
			writeErrorStatus(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		mac := hmac.New(sha256.New, s.pepper)
		mac.Write([]byte(key))
		hash := mac.Sum(nil)

		info, err := s.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
		if err != nil {
			writeErrorStatus(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		// Constant-time comparison guards against timing side-channels even
		// though the lookup already matched on the hash.
		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
			writeErrorStatus(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := auth.WithIdentity(r.Context(), auth.Identity{
			UserID: info.UserID,
			Name:   info.Name,
			Role:   info.Role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects authenticated callers lacking the given role with 403.
func (s *Security) RequireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := auth.IdentityFrom(r.Context())
			if !ok {
				writeErrorStatus(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if id.Role != role {
				writeErrorStatus(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
