//go:build integration
// +build integration

// Package integration exercises the full client pipeline against an
// in-process portal: OAuth token endpoint, bearer-protected REST surface,
// token rotation and scripted failures. No external portal is required.
package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// FakePortal simulates a Bitrix24 portal. It validates bearer tokens on
// every REST call, rotates refresh tokens on use, and lets tests queue
// failures and inspect traffic counters.
type FakePortal struct {
	Server *httptest.Server

	mu            sync.Mutex
	accessTokens  map[string]bool
	refreshTokens map[string]bool
	authCodes     map[string]bool
	tokenSeq      int
	codeGrants    int
	refreshGrants int
	restHits      map[string]int
	arrivals      []time.Time
	failures      map[string][]int
	handlers      map[string]http.HandlerFunc
}

// NewFakePortal starts the portal server.
func NewFakePortal() *FakePortal {
	portal := &FakePortal{
		accessTokens:  make(map[string]bool),
		refreshTokens: make(map[string]bool),
		authCodes:     make(map[string]bool),
		restHits:      make(map[string]int),
		failures:      make(map[string][]int),
		handlers:      make(map[string]http.HandlerFunc),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token/", portal.handleToken)
	mux.HandleFunc("/rest/", portal.handleRest)
	portal.Server = httptest.NewServer(mux)

	return portal
}

// Close shuts the portal down.
func (p *FakePortal) Close() {
	p.Server.Close()
}

// URL returns the portal address, usable as Config.Portal.
func (p *FakePortal) URL() string {
	return p.Server.URL
}

// IssueAccessToken mints an access token the portal will accept.
func (p *FakePortal) IssueAccessToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tokenSeq++
	token := fmt.Sprintf("access-%d", p.tokenSeq)
	p.accessTokens[token] = true

	return token
}

// IssueRefreshToken mints a refresh token the token endpoint will accept.
func (p *FakePortal) IssueRefreshToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tokenSeq++
	token := fmt.Sprintf("refresh-%d", p.tokenSeq)
	p.refreshTokens[token] = true

	return token
}

// AddAuthCode registers a single-use authorization code.
func (p *FakePortal) AddAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.authCodes[code] = true
}

// RevokeAccess invalidates every outstanding access token, so the next REST
// call on any of them comes back 401.
func (p *FakePortal) RevokeAccess() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.accessTokens = make(map[string]bool)
}

// Handle registers a REST handler for one method.
func (p *FakePortal) Handle(method string, handler http.HandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.handlers[method] = handler
}

// HandleResult registers a handler that always answers with the given
// result document.
func (p *FakePortal) HandleResult(method string, result any) {
	p.Handle(method, func(w http.ResponseWriter, r *http.Request) {
		WriteResult(w, result)
	})
}

// FailNext queues `times` one-shot responses with the given status for the
// method, consumed before the registered handler runs.
func (p *FakePortal) FailNext(method string, status, times int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for range times {
		p.failures[method] = append(p.failures[method], status)
	}
}

// CodeGrants reports how many authorization codes were exchanged.
func (p *FakePortal) CodeGrants() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.codeGrants
}

// RefreshGrants reports how many refresh grants were served.
func (p *FakePortal) RefreshGrants() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.refreshGrants
}

// RestHits reports how many times a REST method was hit, 401s included.
func (p *FakePortal) RestHits(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.restHits[method]
}

// Arrivals returns the arrival time of every REST request in order.
func (p *FakePortal) Arrivals() []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]time.Time(nil), p.arrivals...)
}

func (p *FakePortal) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, "invalid_request", "malformed form body")

		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch r.FormValue("grant_type") {
	case "authorization_code":
		code := r.FormValue("code")
		if !p.authCodes[code] {
			writeOAuthError(w, "invalid_grant", "authorization code is not valid")

			return
		}

		delete(p.authCodes, code)
		p.codeGrants++
		p.writeTokenPairLocked(w)
	case "refresh_token":
		refresh := r.FormValue("refresh_token")
		if !p.refreshTokens[refresh] {
			writeOAuthError(w, "invalid_grant", "refresh token is not valid")

			return
		}

		// Refresh tokens are single use; the response carries the rotation.
		delete(p.refreshTokens, refresh)
		p.refreshGrants++
		p.writeTokenPairLocked(w)
	default:
		writeOAuthError(w, "unsupported_grant_type", "unknown grant type")
	}
}

func (p *FakePortal) writeTokenPairLocked(w http.ResponseWriter) {
	p.tokenSeq++
	access := fmt.Sprintf("access-%d", p.tokenSeq)
	p.tokenSeq++
	refresh := fmt.Sprintf("refresh-%d", p.tokenSeq)

	p.accessTokens[access] = true
	p.refreshTokens[refresh] = true

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"expires_in":    3600,
	})
}

func (p *FakePortal) handleRest(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimPrefix(r.URL.Path, "/rest/")
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	p.mu.Lock()
	p.restHits[method]++
	p.arrivals = append(p.arrivals, time.Now())

	if !p.accessTokens[token] {
		p.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error":             "expired_token",
			"error_description": "The access token provided has expired",
		})

		return
	}

	if queue := p.failures[method]; len(queue) > 0 {
		status := queue[0]
		p.failures[method] = queue[1:]
		p.mu.Unlock()
		writeJSON(w, status, map[string]any{
			"error":             "failure",
			"error_description": "scripted failure",
		})

		return
	}

	handler := p.handlers[method]
	p.mu.Unlock()

	if handler == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":             "unknown_method",
			"error_description": "method " + method + " is not registered",
		})

		return
	}

	handler(w, r)
}

// WriteResult writes the portal's standard success envelope.
func WriteResult(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

// WriteListResult writes a listing page with total and optional next offset.
func WriteListResult(w http.ResponseWriter, items any, total int, next *int) {
	doc := map[string]any{"result": items, "total": total}
	if next != nil {
		doc["next"] = *next
	}

	writeJSON(w, http.StatusOK, doc)
}

func writeOAuthError(w http.ResponseWriter, code, description string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":             code,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, status int, doc any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(doc)
}
