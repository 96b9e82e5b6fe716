/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package asclient

import (
	"github.com/go-jose/go-jose/v4"
)

// PublicKeySet is a set of the Authorization Server's public keys. It's immutable.
type PublicKeySet struct {
	keys []jose.JSONWebKey
}

// NewPublicKeySet creates a new PublicKeySet. Private keys are reduced to their public part.
func NewPublicKeySet(keys ...jose.JSONWebKey) *PublicKeySet {
	pubKeys := make([]jose.JSONWebKey, 0, len(keys))
	for i := range keys {
		if keys[i].IsPublic() {
			pubKeys = append(pubKeys, keys[i])
			continue
		}
		pubKeys = append(pubKeys, keys[i].Public())
	}
	return &PublicKeySet{keys: pubKeys}
}

// Keys returns a copy of keys in the set.
func (s *PublicKeySet) Keys() []jose.JSONWebKey {
	if s == nil {
		return nil
	}
	return append([]jose.JSONWebKey(nil), s.keys...)
}

// Len returns the number of keys in the set.
func (s *PublicKeySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// HasKey reports whether the set contains a key with the given ID.
func (s *PublicKeySet) HasKey(keyID string) bool {
	if s == nil {
		return false
	}
	for i := range s.keys {
		if s.keys[i].KeyID == keyID {
			return true
		}
	}
	return false
}

// SignatureKeys returns public keys that may be used for verifying a signature made with the given key ID.
// All signature keys are returned if keyID is empty. Keys published for encryption only are skipped.
func (s *PublicKeySet) SignatureKeys(keyID string) []interface{} {
	if s == nil {
		return nil
	}
	var res []interface{}
	for i := range s.keys {
		if s.keys[i].Key == nil || s.keys[i].Use == "enc" {
			continue
		}
		if keyID != "" && s.keys[i].KeyID != keyID {
			continue
		}
		res = append(res, s.keys[i].Key)
	}
	return res
}
