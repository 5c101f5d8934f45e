package auth

// KeyStore manages JWT signing keys by issuer and kid
type KeyStore struct {
	hs256Keys map[string]map[string][]byte // issuer -> kid -> secret
}

// NewKeyStore creates a new KeyStore
func NewKeyStore() *KeyStore {
	return &KeyStore{
		hs256Keys: make(map[string]map[string][]byte),
	}
}

// LoadHS256Key adds an HS256 secret key for an issuer and kid
func (ks *KeyStore) LoadHS256Key(issuer, kid string, secret []byte) {
	if _, ok := ks.hs256Keys[issuer]; !ok {
		ks.hs256Keys[issuer] = make(map[string][]byte)
	}
	ks.hs256Keys[issuer][kid] = secret
}

// GetHS256Key retrieves an HS256 secret for an issuer and kid
func (ks *KeyStore) GetHS256Key(issuer, kid string) ([]byte, bool) {
	if keys, ok := ks.hs256Keys[issuer]; ok {
		if secret, ok := keys[kid]; ok {
			return secret, true
		}
	}
	return nil, false
}
