package jwtx

import (
	"crypto"
	"errors"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

type keyEntry struct {
	jwk JWK
	pub crypto.PublicKey
}

// KeySet holds the public verification keys published on the JWKS
// endpoint. It is safe for concurrent use.
type KeySet struct {
	mu    sync.RWMutex
	order []string
	byKID map[string]keyEntry
}

func NewKeySet() *KeySet {
	return &KeySet{byKID: make(map[string]keyEntry)}
}

// AddSigner publishes the signer's public key.
func (k *KeySet) AddSigner(s Signer) error {
	return k.AddJWK(s.PublicJWK())
}

// AddJWK parses j and publishes it. Re-adding a kid replaces the entry.
func (k *KeySet) AddJWK(j JWK) error {
	if j.Kid == "" {
		return errors.New("jwtx: jwk has no kid")
	}
	pub, err := j.PublicKey()
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if _, exists := k.byKID[j.Kid]; !exists {
		k.order = append(k.order, j.Kid)
	}
	k.byKID[j.Kid] = keyEntry{jwk: j, pub: pub}
	return nil
}

// Remove drops kid from the set. Unknown kids are ignored.
func (k *KeySet) Remove(kid string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.byKID[kid]; !ok {
		return
	}
	delete(k.byKID, kid)
	for i, id := range k.order {
		if id == kid {
			k.order = append(k.order[:i], k.order[i+1:]...)
			break
		}
	}
}

// Get returns the public key and algorithm published under kid.
func (k *KeySet) Get(kid string) (crypto.PublicKey, string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, ok := k.byKID[kid]
	if !ok {
		return nil, "", ErrNoKey
	}
	return e.pub, e.jwk.Alg, nil
}

// PublicJWKS returns a snapshot in insertion order.
func (k *KeySet) PublicJWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := JWKS{Keys: make([]JWK, 0, len(k.order))}
	for _, kid := range k.order {
		out.Keys = append(out.Keys, k.byKID[kid].jwk)
	}
	return out
}

func (k *KeySet) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.byKID)
}
