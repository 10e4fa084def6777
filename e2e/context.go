// Package e2e drives a running customerhub over HTTP with godog scenarios.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestContext holds per-scenario HTTP state.
type TestContext struct {
	baseURL    string
	signingKey string
	issuer     string
	audience   string
	client     *http.Client

	token      string
	lastStatus int
	lastBody   []byte
	vars       map[string]string
}

func NewTestContext(baseURL, signingKey, issuer, audience string) *TestContext {
	return &TestContext{
		baseURL:    strings.TrimRight(baseURL, "/"),
		signingKey: signingKey,
		issuer:     issuer,
		audience:   audience,
		client:     &http.Client{Timeout: 10 * time.Second},
		vars:       map[string]string{},
	}
}

// Reset clears state between scenarios. The {run} placeholder keeps unique
// attributes distinct across runs against the same database.
func (tc *TestContext) Reset() {
	tc.token = ""
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.vars = map[string]string{"run": fmt.Sprintf("%06d", time.Now().UnixNano()%1_000_000)}
}

// AuthenticateAs mints an operator token with the given role. An empty role
// drops authentication.
func (tc *TestContext) AuthenticateAs(role string) error {
	if role == "" {
		tc.token = ""
		return nil
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "e2e-" + role,
		"role": role,
		"iss":  tc.issuer,
		"aud":  tc.audience,
		"iat":  now.Unix(),
		"exp":  now.Add(10 * time.Minute).Unix(),
		"jti":  fmt.Sprintf("e2e-%d", now.UnixNano()),
	})
	signed, err := token.SignedString([]byte(tc.signingKey))
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	tc.token = signed
	return nil
}

func (tc *TestContext) Do(ctx context.Context, method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, tc.baseURL+tc.Expand(path), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) LastStatus() int { return tc.lastStatus }

// ResponseField reads a top-level field, or a dotted path into nested
// objects and arrays ("cards.0.id").
func (tc *TestContext) ResponseField(path string) (any, error) {
	var doc any
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w (%s)", err, tc.lastBody)
	}
	for _, part := range strings.Split(path, ".") {
		switch node := doc.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q missing in %s", path, tc.lastBody)
			}
			doc = v
		case []any:
			var i int
			if _, err := fmt.Sscanf(part, "%d", &i); err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range in %q", part, path)
			}
			doc = node[i]
		default:
			return nil, fmt.Errorf("cannot descend into %q", path)
		}
	}
	return doc, nil
}

func (tc *TestContext) Save(name, value string) { tc.vars[name] = value }

// Expand replaces {name} placeholders with saved values.
func (tc *TestContext) Expand(s string) string {
	for k, v := range tc.vars {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}
