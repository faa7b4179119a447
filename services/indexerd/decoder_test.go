package indexerd

import (
	"encoding/binary"
	"testing"
)

func buildMarketRecord(tick int32, sqrtPrice, liquidity uint64, baseFeeBps uint16) []byte {
	buf := make([]byte, marketRecordLen)
	copy(buf[0:8], marketDiscriminator[:])
	copy(buf[8:40], []byte("token0"))
	copy(buf[40:72], []byte("token1"))
	binary.LittleEndian.PutUint32(buf[72:76], uint32(tick))
	binary.LittleEndian.PutUint64(buf[76:84], sqrtPrice)
	binary.LittleEndian.PutUint64(buf[84:92], liquidity)
	binary.LittleEndian.PutUint16(buf[92:94], baseFeeBps)
	return buf
}

func TestBinaryDecoderDiscriminatesMarket(t *testing.T) {
	data := buildMarketRecord(100, 1<<40, 5_000_000, 30)
	if got := (BinaryDecoder{}).Discriminate(data); got != DiscriminatorMarket {
		t.Fatalf("expected market discriminator, got %v", got)
	}
}

func TestBinaryDecoderDecodesMarketFields(t *testing.T) {
	data := buildMarketRecord(-1200, 1<<40, 5_000_000, 30)
	market, err := (BinaryDecoder{}).DecodeMarket("market-pubkey", data, 42)
	if err != nil {
		t.Fatalf("decode market: %v", err)
	}
	if market.Token0 != "token0" || market.Token1 != "token1" {
		t.Fatalf("unexpected tokens: %+v", market)
	}
	if market.CurrentTick != -1200 {
		t.Fatalf("expected tick -1200, got %d", market.CurrentTick)
	}
	if market.Liquidity != "5000000" {
		t.Fatalf("expected liquidity 5000000, got %s", market.Liquidity)
	}
	if market.LastSlot != 42 {
		t.Fatalf("expected slot 42, got %d", market.LastSlot)
	}
}

func TestBinaryDecoderRejectsShortRecord(t *testing.T) {
	_, err := (BinaryDecoder{}).DecodeMarket("x", []byte{1, 2, 3}, 1)
	if err == nil {
		t.Fatal("expected error decoding a truncated record")
	}
}

func TestBinaryDecoderUnknownTagIsUnrecognized(t *testing.T) {
	data := make([]byte, marketRecordLen)
	copy(data[0:8], []byte("GARBAGE_"))
	if got := (BinaryDecoder{}).Discriminate(data); got != DiscriminatorUnknown {
		t.Fatalf("expected unknown discriminator, got %v", got)
	}
}
