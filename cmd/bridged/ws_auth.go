package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"someipbridge/internal/auth"
	"someipbridge/internal/transport"
)

type hmacWebsocketAuthenticator struct {
	verifier *auth.HMACTokenVerifier
}

// newHMACWebsocketAuthenticator adapts an HMAC token verifier into a
// transport.Authenticator, gating websocket upgrades on a signed token
// instead of the hub's default allow-all policy.
func newHMACWebsocketAuthenticator(secret string) (transport.Authenticator, error) {
	verifier, err := auth.NewHMACTokenVerifier(secret, 2*time.Second)
	if err != nil {
		return nil, err
	}
	return &hmacWebsocketAuthenticator{verifier: verifier}, nil
}

// Authenticate validates the incoming token and returns the logical client identifier.
func (a *hmacWebsocketAuthenticator) Authenticate(r *http.Request) (string, error) {
	if a == nil || a.verifier == nil {
		return "", errors.New("verifier not configured")
	}
	token := strings.TrimSpace(r.URL.Query().Get("auth_token"))
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Auth-Token"))
	}
	if token == "" {
		return "", errors.New("missing auth token")
	}
	claims, err := a.verifier.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
