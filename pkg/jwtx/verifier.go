package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates a compact JWS and returns its claims.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// VerifyOptions are the expectations a token must meet.
type VerifyOptions struct {
	// Issuer the token must carry. Empty skips the check.
	Issuer string

	// Audience values of which at least one must be present. Empty skips
	// the check.
	Audience []string

	// Leeway absorbs clock skew on exp and nbf.
	Leeway time.Duration

	// Now overrides the clock; nil uses time.Now.
	Now func() time.Time
}

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrAudience     = errors.New("jwtx: audience mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// KeySetVerifier verifies tokens signed by any key in a KeySet.
type KeySetVerifier struct {
	keys   *KeySet
	opts   VerifyOptions
	parser *jwt.Parser
}

func NewVerifier(keys *KeySet, opts VerifyOptions) *KeySetVerifier {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &KeySetVerifier{
		keys: keys,
		opts: opts,
		// Time based claims are checked afterwards so leeway and the clock
		// override apply.
		parser: jwt.NewParser(
			jwt.WithValidMethods(SupportedAlgorithms()),
			jwt.WithoutClaimsValidation(),
		),
	}
}

func (v *KeySetVerifier) Verify(tokenStr string) (Claims, error) {
	var claims Claims

	_, err := v.parser.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid", ErrUnknownKID)
		}
		pub, alg, err := v.keys.Get(kid)
		if err != nil {
			return nil, fmt.Errorf("%w %q", ErrUnknownKID, kid)
		}
		if t.Method.Alg() != alg {
			return nil, fmt.Errorf("%w: header %s, key %s", ErrAlgMismatch, t.Method.Alg(), alg)
		}
		return pub, nil
	})
	if err != nil {
		return Claims{}, classify(err)
	}

	if err := claims.ValidateIssuer(v.opts.Issuer); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateAudience(v.opts.Audience); err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateTimes(v.opts.Now(), v.opts.Leeway); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

func classify(err error) error {
	for _, sentinel := range []error{ErrUnknownKID, ErrAlgMismatch} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSig, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidClaim, err)
	}
}

// TokenKID reads the kid header without verifying the token. Only use it on
// tokens that have already passed Verify.
func TokenKID(tokenStr string) (string, error) {
	t, _, err := jwt.NewParser().ParseUnverified(tokenStr, &Claims{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	kid, _ := t.Header["kid"].(string)
	return kid, nil
}
