// Package auth verifies bearer tokens for the write endpoints.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Roles, in increasing privilege.
const (
	RoleViewer   = "viewer"
	RoleSurveyor = "surveyor"
	RoleAdmin    = "admin"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrBadSignature = errors.New("bad signature")
	ErrExpired      = errors.New("token expired")
)

// Verifier validates tokens. Mode "dev" accepts "subject:role" verbatim and
// mode "hmac" accepts HS256 JWTs signed with Secret.
type Verifier struct {
	Mode      string
	Secret    []byte
	RoleClaim string
	Now       func() time.Time
}

type Principal struct {
	Subject string
	Role    string
}

func NewVerifier(mode, secret string) *Verifier {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = "dev"
	}
	return &Verifier{Mode: mode, Secret: []byte(secret), RoleClaim: "role", Now: time.Now}
}

// Can reports whether the principal's role reaches min.
func (p Principal) Can(min string) bool { return rank(p.Role) >= rank(min) }

func rank(role string) int {
	switch role {
	case RoleAdmin:
		return 3
	case RoleSurveyor:
		return 2
	case RoleViewer:
		return 1
	}
	return 0
}

func (v *Verifier) Verify(token string) (Principal, error) {
	switch v.Mode {
	case "dev":
		sub, role, ok := strings.Cut(token, ":")
		if !ok || role == "" {
			return Principal{}, fmt.Errorf("%w: expected subject:role", ErrInvalidToken)
		}
		return Principal{Subject: sub, Role: strings.ToLower(role)}, nil
	case "hmac":
		return v.verifyHS256(token)
	}
	return Principal{}, fmt.Errorf("unsupported auth mode %q", v.Mode)
}

func (v *Verifier) verifyHS256(token string) (Principal, error) {
	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return Principal{}, ErrInvalidToken
	}
	var hdr struct {
		Alg string `json:"alg"`
	}
	if err := decodeSegment(segs[0], &hdr); err != nil {
		return Principal{}, err
	}
	if hdr.Alg != "HS256" {
		return Principal{}, fmt.Errorf("%w: alg %q", ErrInvalidToken, hdr.Alg)
	}
	sig, err := base64.RawURLEncoding.DecodeString(segs[2])
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	if !hmac.Equal(sign(v.Secret, segs[0]+"."+segs[1]), sig) {
		return Principal{}, ErrBadSignature
	}
	var claims map[string]any
	if err := decodeSegment(segs[1], &claims); err != nil {
		return Principal{}, err
	}
	if exp, ok := claims["exp"].(float64); ok && v.Now().Unix() >= int64(exp) {
		return Principal{}, ErrExpired
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims[v.RoleClaim].(string)
	if role == "" {
		role = RoleViewer
	}
	return Principal{Subject: sub, Role: strings.ToLower(role)}, nil
}

// SignHS256 issues a token for claims; used by operators and tests.
func SignHS256(secret []byte, claims map[string]any) (string, error) {
	hdr, err := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	input := base64.RawURLEncoding.EncodeToString(hdr) + "." + base64.RawURLEncoding.EncodeToString(body)
	return input + "." + base64.RawURLEncoding.EncodeToString(sign(secret, input)), nil
}

func sign(secret []byte, input string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(input))
	return mac.Sum(nil)
}

func decodeSegment(seg string, v any) error {
	b, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return ErrInvalidToken
	}
	if err := json.Unmarshal(b, v); err != nil {
		return ErrInvalidToken
	}
	return nil
}
