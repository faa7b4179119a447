package keeperd

import (
	"encoding/binary"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/fluxfield/clmm/crypto"
	"github.com/fluxfield/clmm/field"
)

// signCommitment produces the ECDSA signature over the commitment the
// program's update_field_commitment instruction authenticates against, per
// spec.md §6.1's "keeper-authenticated" requirement. The digest binds the
// market address so a signature cannot be replayed against another market.
func signCommitment(signer *crypto.PrivateKey, marketAddress string, commitment field.Commitment) ([]byte, error) {
	digest := commitmentDigest(marketAddress, commitment)
	sig, err := ethcrypto.Sign(digest, signer.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("sign digest: %w", err)
	}
	return sig, nil
}

func commitmentDigest(marketAddress string, c field.Commitment) []byte {
	buf := make([]byte, 0, len(marketAddress)+8*10+2+4)
	buf = append(buf, []byte(marketAddress)...)
	appendUint64 := func(v uint64) {
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], v)
		buf = append(buf, tmp[:]...)
	}
	appendUint64(c.S)
	appendUint64(c.T)
	appendUint64(c.L)
	appendUint64(uint64(c.WS))
	appendUint64(uint64(c.WT))
	appendUint64(uint64(c.WL))
	appendUint64(uint64(c.WTau))
	appendUint64(c.SigmaPrice)
	appendUint64(c.Sequence)
	appendUint64(uint64(c.SnapshotTimestamp))
	return ethcrypto.Keccak256(buf)
}
