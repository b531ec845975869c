package michelson

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var addressVectors = []struct {
	packed string
	b58    string
}{
	{"0000b28066369a8ed09ba9d3d47f19598440266013f0", BurnAddress},
	{"00000102030405060708090a0b0c0d0e0f1011121314", "tz1KjMn6Hb23eu1rNemou6ytAzzNxzvaYHyK"},
	{"00010102030405060708090a0b0c0d0e0f1011121314", "tz28QZkJtASQaeeieppeZjx8iaFPUtPpBrZd"},
	{"01125b47ee42ea61efab7225c207480c8b7dcfc8c500", "KT1AFq5XorPduoYyWxs5gEyrFK6fVjJVbtCj"},
	{"015f3c6b1a103fb1d1fae5eac41b0b44f8d17c83e400", "KT1HGL8vx7DP4xETVikL4LUYvFxSV19DxdFN"},
}

func TestReadWriteAddress(t *testing.T) {
	for _, v := range addressVectors {
		got, err := ReadAddress(v.packed)
		require.NoError(t, err, v.packed)
		assert.Equal(t, v.b58, got)

		got, err = ReadAddress("0x" + v.packed)
		require.NoError(t, err)
		assert.Equal(t, v.b58, got)

		packed, err := WriteAddress(v.b58)
		require.NoError(t, err, v.b58)
		assert.Equal(t, v.packed, packed)
	}
}

func TestReadAddressRejects(t *testing.T) {
	bad := []string{
		"",
		"zz",
		"0000b28066369a8ed09ba9d3d47f19598440266013",
		"0009b28066369a8ed09ba9d3d47f19598440266013f0",
		"01125b47ee42ea61efab7225c207480c8b7dcfc8c501",
		"02125b47ee42ea61efab7225c207480c8b7dcfc8c500",
	}
	for _, h := range bad {
		_, err := ReadAddress(h)
		assert.True(t, errors.Is(err, ErrInvalidAddress), h)
	}
}

func TestWriteAddressRejects(t *testing.T) {
	for _, a := range []string{"", "tz1", "tz1burnburnburnburnburnburnburjAYjjY", "not-base58!"} {
		_, err := WriteAddress(a)
		assert.ErrorIs(t, err, ErrInvalidAddress, a)
	}
	assert.False(t, ValidAddress("KT1AFq5XorPduoYyWxs5gEyrFK6fVjJVbtCk"))
	assert.True(t, ValidAddress("KT1AFq5XorPduoYyWxs5gEyrFK6fVjJVbtCj"))
}

func TestAddressOf(t *testing.T) {
	a, ok := AddressOf(MustParse(`"tz1KjMn6Hb23eu1rNemou6ytAzzNxzvaYHyK"`))
	assert.True(t, ok)
	assert.Equal(t, "tz1KjMn6Hb23eu1rNemou6ytAzzNxzvaYHyK", a)

	a, ok = AddressOf(MustParse("0x01125b47ee42ea61efab7225c207480c8b7dcfc8c500"))
	assert.True(t, ok)
	assert.Equal(t, "KT1AFq5XorPduoYyWxs5gEyrFK6fVjJVbtCj", a)

	_, ok = AddressOf(MustParse(`"hello"`))
	assert.False(t, ok)
	_, ok = AddressOf(MustParse("12"))
	assert.False(t, ok)
}

func TestDecodeURI(t *testing.T) {
	assert.Equal(t, "QmTest123", DecodeURI("697066733a2f2f516d54657374313233"))
	assert.Equal(t, "QmTest123", DecodeURI("0x697066733a2f2f516d54657374313233"))
	assert.Equal(t, "", DecodeURI("6970"))
	assert.Equal(t, "", DecodeURI("zz"))
	assert.Equal(t, "", DecodeURI("ff00ff00ff00ff00"))
}
