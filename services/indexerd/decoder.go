package indexerd

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/fluxfield/clmm/services/indexerd/storage"
)

// Account layouts are not prescribed by the projection contract (Decoder is
// caller-supplied); BinaryDecoder is one concrete, Anchor-style encoding —
// an 8-byte ASCII discriminator tag followed by fixed-width little-endian
// fields — matched to core/market.Market and core/market.Position so a
// deployment that serializes accounts this way can use it directly.
type BinaryDecoder struct{}

var (
	marketDiscriminator   = [8]byte{'M', 'A', 'R', 'K', 'E', 'T', '_', '_'}
	positionDiscriminator = [8]byte{'P', 'O', 'S', 'N', '_', '_', '_', '_'}
)

const (
	marketRecordLen   = 8 + 32 + 32 + 4 + 8 + 8 + 2 // discriminator + token0 + token1 + tick + sqrtPrice + liquidity + baseFeeBps
	positionRecordLen = 8 + 32 + 4 + 4 + 8          // discriminator + owner + lowerTick + upperTick + liquidity
)

func (BinaryDecoder) Discriminate(data []byte) Discriminator {
	if len(data) < 8 {
		return DiscriminatorUnknown
	}
	var tag [8]byte
	copy(tag[:], data[:8])
	switch tag {
	case marketDiscriminator:
		return DiscriminatorMarket
	case positionDiscriminator:
		return DiscriminatorPosition
	default:
		return DiscriminatorUnknown
	}
}

func (BinaryDecoder) DecodeMarket(pubkey string, data []byte, slot uint64) (storage.Market, error) {
	if len(data) < marketRecordLen {
		return storage.Market{}, fmt.Errorf("indexerd: market record too short (%d bytes)", len(data))
	}
	off := 8
	token0 := trimNulls(data[off : off+32])
	off += 32
	token1 := trimNulls(data[off : off+32])
	off += 32
	tick := int32(binary.LittleEndian.Uint32(data[off : off+4]))
	off += 4
	sqrtPrice := binary.LittleEndian.Uint64(data[off : off+8])
	off += 8
	liquidity := binary.LittleEndian.Uint64(data[off : off+8])
	off += 8
	baseFeeBps := binary.LittleEndian.Uint16(data[off : off+2])

	return storage.Market{
		Address:     pubkey,
		Token0:      token0,
		Token1:      token1,
		BaseFeeBps:  baseFeeBps,
		CurrentTick: tick,
		SqrtPrice:   strconv.FormatUint(sqrtPrice, 10),
		Liquidity:   strconv.FormatUint(liquidity, 10),
		LastSlot:    slot,
	}, nil
}

func (BinaryDecoder) DecodePosition(pubkey string, data []byte, slot uint64) (storage.Position, error) {
	if len(data) < positionRecordLen {
		return storage.Position{}, fmt.Errorf("indexerd: position record too short (%d bytes)", len(data))
	}
	off := 8
	owner := trimNulls(data[off : off+32])
	off += 32
	lowerTick := int32(binary.LittleEndian.Uint32(data[off : off+4]))
	off += 4
	upperTick := int32(binary.LittleEndian.Uint32(data[off : off+4]))
	off += 4
	liquidity := binary.LittleEndian.Uint64(data[off : off+8])

	return storage.Position{
		Address:   pubkey,
		Owner:     owner,
		LowerTick: lowerTick,
		UpperTick: upperTick,
		Liquidity: strconv.FormatUint(liquidity, 10),
		LastSlot:  slot,
	}, nil
}

func trimNulls(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end])
}
