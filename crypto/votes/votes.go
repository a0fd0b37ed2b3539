// Package votes models the confidential ballot envelope and the external
// verify-and-decrypt capability consumed by the dispute core. The core only
// checks the envelope metadata and the verified-key count against the
// dispute's threshold; the actual threshold cryptography stays behind the
// Verifier interface.
package votes

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/NivraLabs/nivra-court-sub000/common"
)

// Ballot is an encrypted vote with its embedded authorization data.
// The plaintext is a 2-element payload: chosen option index, chosen party index.
type Ballot struct {
	Sender     common.Address `cbor:"1,keyasint"`
	Dispute    common.Hash    `cbor:"2,keyasint"`
	KeyServers []common.Hash  `cbor:"3,keyasint"`
	Threshold  uint8          `cbor:"4,keyasint"`
	Ciphertext []byte         `cbor:"5,keyasint"`
}

func (b *Ballot) ToBytes() ([]byte, error) {
	return cbor.Marshal(b)
}

func BallotFromBytes(data []byte) (*Ballot, error) {
	b := new(Ballot)
	if err := cbor.Unmarshal(data, b); err != nil {
		return nil, err
	}
	return b, nil
}

// MatchesServers reports whether the envelope pins exactly the given
// key-server set, in the same registration order.
func (b *Ballot) MatchesServers(servers []common.Hash) bool {
	if len(b.KeyServers) != len(servers) {
		return false
	}
	for i, s := range servers {
		if b.KeyServers[i] != s {
			return false
		}
	}
	return true
}

// VerifiedKey is a derived decryption key that passed server verification.
type VerifiedKey struct {
	Server   common.Hash
	Material []byte
}

// Verifier is the opaque verify-and-decrypt capability.
type Verifier interface {
	// VerifyDerivedKeys checks each submitted key material against the
	// registered key servers of the dispute and returns the subset that
	// verified. Unverifiable material is dropped, not an error.
	VerifyDerivedKeys(material [][]byte, contextID []byte, dispute common.Hash, servers []common.Hash) ([]VerifiedKey, error)

	// Decrypt opens a ballot ciphertext with the verified key material.
	// Returns false when the ciphertext cannot be opened.
	Decrypt(ciphertext []byte, keys []VerifiedKey, servers []common.Hash) ([]byte, bool)
}
