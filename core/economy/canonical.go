package economy

import (
	"bytes"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/NivraLabs/nivra-court-sub000/common"
)

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

type disputeCommitment struct {
	_           struct{}    `cbor:",toarray"`
	Contract    common.Hash
	Parties     [][]byte
	Options     [][]byte
	OptionCount uint32
}

// CanonicalBytes serializes the identity-relevant dispute configuration into
// a deterministic byte string: parties and options are sorted into canonical
// byte order first, so permuted inputs produce identical output. The result
// feeds downstream commitment and verification.
func CanonicalBytes(contract common.Hash, parties []common.Address, options [][]byte) ([]byte, error) {
	sortedParties := make([][]byte, len(parties))
	for i, p := range parties {
		sortedParties[i] = append([]byte(nil), p.Bytes()...)
	}
	sort.Slice(sortedParties, func(i, j int) bool {
		return bytes.Compare(sortedParties[i], sortedParties[j]) < 0
	})

	sortedOptions := make([][]byte, len(options))
	for i, o := range options {
		sortedOptions[i] = append([]byte(nil), o...)
	}
	sort.Slice(sortedOptions, func(i, j int) bool {
		return bytes.Compare(sortedOptions[i], sortedOptions[j]) < 0
	})

	return encMode.Marshal(&disputeCommitment{
		Contract:    contract,
		Parties:     sortedParties,
		Options:     sortedOptions,
		OptionCount: uint32(len(options)),
	})
}
