package votes

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/NivraLabs/nivra-court-sub000/common"
	"github.com/NivraLabs/nivra-court-sub000/crypto"
)

// AEADVerifier is an in-process Verifier for tests and single-node setups.
// Each key server holds a master secret; the per-dispute derived key is
// keccak(master || dispute || context). The group key requires the derived
// keys of every registered server, so callers should configure
// threshold == len(servers) when using it.
type AEADVerifier struct {
	masters map[common.Hash][]byte
}

func NewAEADVerifier(masters map[common.Hash][]byte) *AEADVerifier {
	return &AEADVerifier{masters: masters}
}

func (v *AEADVerifier) deriveKey(server common.Hash, contextID []byte, dispute common.Hash) ([]byte, error) {
	master, ok := v.masters[server]
	if !ok {
		return nil, errors.Errorf("unknown key server %v", server)
	}
	h := crypto.HashConcat(master, dispute.Bytes(), contextID)
	return h.Bytes(), nil
}

func (v *AEADVerifier) VerifyDerivedKeys(material [][]byte, contextID []byte, dispute common.Hash, servers []common.Hash) ([]VerifiedKey, error) {
	var verified []VerifiedKey
	for _, m := range material {
		for _, server := range servers {
			expected, err := v.deriveKey(server, contextID, dispute)
			if err != nil {
				continue
			}
			if bytes.Equal(m, expected) {
				verified = append(verified, VerifiedKey{Server: server, Material: m})
				break
			}
		}
	}
	return verified, nil
}

func (v *AEADVerifier) Decrypt(ciphertext []byte, keys []VerifiedKey, servers []common.Hash) ([]byte, bool) {
	groupKey, ok := groupKey(keys, servers)
	if !ok {
		return nil, false
	}
	plain, err := crypto.Decrypt(ciphertext, groupKey)
	if err != nil {
		return nil, false
	}
	return plain, true
}

// Seal encrypts a ballot payload for the given dispute. Test-side helper,
// the production sealer lives with the key servers.
func (v *AEADVerifier) Seal(payload []byte, contextID []byte, dispute common.Hash, servers []common.Hash) ([]byte, error) {
	var keys []VerifiedKey
	for _, server := range servers {
		m, err := v.deriveKey(server, contextID, dispute)
		if err != nil {
			return nil, err
		}
		keys = append(keys, VerifiedKey{Server: server, Material: m})
	}
	groupKey, ok := groupKey(keys, servers)
	if !ok {
		return nil, errors.New("cannot build group key")
	}
	return crypto.Encrypt(payload, groupKey)
}

// DeriveKeys returns the derived key material of every server, in order.
func (v *AEADVerifier) DeriveKeys(contextID []byte, dispute common.Hash, servers []common.Hash) ([][]byte, error) {
	material := make([][]byte, 0, len(servers))
	for _, server := range servers {
		m, err := v.deriveKey(server, contextID, dispute)
		if err != nil {
			return nil, err
		}
		material = append(material, m)
	}
	return material, nil
}

func groupKey(keys []VerifiedKey, servers []common.Hash) ([32]byte, bool) {
	byServer := make(map[common.Hash][]byte, len(keys))
	for _, k := range keys {
		byServer[k.Server] = k.Material
	}
	var chunks [][]byte
	for _, server := range servers {
		m, ok := byServer[server]
		if !ok {
			return [32]byte{}, false
		}
		chunks = append(chunks, m)
	}
	return crypto.HashConcat(chunks...), true
}
