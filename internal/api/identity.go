package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"

	"github.com/chetanK28/planning-poker/internal/types"
)

// The identity cookie replaces the original client-local storage of the
// display name and role: the browser replays it automatically, so a page
// refresh reconnects into the same member slot.

var (
	defaultExp        = time.Hour * 24
	identityCookieKey = "identity"
)

const (
	usernameClaim = "username"
	roleClaim     = "role"
	expClaim      = "exp"
)

type contextKey string

const identityKey contextKey = "identity"

func WithIdentity(ctx context.Context, id types.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFrom(ctx context.Context) (types.Identity, bool) {
	id, ok := ctx.Value(identityKey).(types.Identity)
	return id, ok
}

type IdentityRequest struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (s *PokerApp) createIdentity(w http.ResponseWriter, r *http.Request) {
	var req IdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	username := strings.TrimSpace(req.Username)
	role := types.Role(req.Role)
	if username == "" || !role.Valid() {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	id := types.Identity{Username: username, Role: role}

	token, err := s.createIdentityToken(id, defaultExp)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createIdentityCookie(token, defaultExp))
	s.writeJson(w, http.StatusCreated, id)
}

func (s *PokerApp) getIdentity(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, id)
}

func (s *PokerApp) deleteIdentity(w http.ResponseWriter, _ *http.Request) {
	// instruct browser to delete cookie by overwriting it with an expired one
	http.SetCookie(w, createIdentityCookie("", time.Duration(time.Unix(0, 0).Unix())))
	w.WriteHeader(http.StatusNoContent)
}

func createIdentityCookie(tokenString string, exp time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     identityCookieKey,
		Value:    tokenString,
		Path:     "/",
		Expires:  time.Now().Add(exp),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func (s *PokerApp) createIdentityToken(id types.Identity, exp time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		usernameClaim: id.Username,
		roleClaim:     string(id.Role),
		expClaim:      time.Now().Add(exp).Unix(),
	})

	return token.SignedString(s.signingKey)
}

func (s *PokerApp) extractIdentityFromToken(tokenString string) (types.Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	})
	if err != nil {
		return types.Identity{}, fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return types.Identity{}, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return types.Identity{}, fmt.Errorf("invalid token claims")
	}

	username, ok := claims[usernameClaim].(string)
	if !ok || username == "" {
		return types.Identity{}, fmt.Errorf("invalid username claim")
	}

	role, ok := claims[roleClaim].(string)
	if !ok || !types.Role(role).Valid() {
		return types.Identity{}, fmt.Errorf("invalid role claim")
	}

	return types.Identity{Username: username, Role: types.Role(role)}, nil
}
