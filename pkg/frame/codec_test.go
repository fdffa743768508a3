package frame

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framewire/netcore/pkg/version"
)

func TestEncodeDecode_Bootstrap(t *testing.T) {
	pid := NewPid()
	secret, err := NewSecret()
	require.NoError(t, err)

	hs := Handshake{Magic: MagicNumber, Version: version.New(1, 2, 3)}
	data, err := Encode(hs)
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, hs, got)

	in := Init{Pid: pid, Secret: secret}
	data, err = Encode(in)
	require.NoError(t, err)
	got, err = Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestEncodeDecode_DataPayloadUnchanged(t *testing.T) {
	payload := []byte{0x00, 0xFF, 0x7F, 0x80, 'h', 'i'}
	f := Data{Mid: 9, Sid: Offset2 + 3, Start: 128, Payload: payload}

	data, err := Encode(f)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	d, ok := got.(Data)
	require.True(t, ok, "decoded %T, want Data", got)
	assert.Equal(t, f.Mid, d.Mid)
	assert.Equal(t, f.Sid, d.Sid)
	assert.Equal(t, f.Start, d.Start)
	assert.True(t, bytes.Equal(payload, d.Payload), "payload changed in transit")
}

func TestEncode_Deterministic(t *testing.T) {
	f := OpenStream{Sid: 42, Prio: 3, Promises: PromiseOrdered | PromiseGuaranteedDelivery}

	a, err := Encode(f)
	require.NoError(t, err)
	b, err := Encode(f)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncode_Nil(t *testing.T) {
	_, err := Encode(nil)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestDecode_Malformed(t *testing.T) {
	unknownKind, err := cbor.Marshal([]any{uint8(200), map[int]any{}})
	require.NoError(t, err)

	shortPid, err := cbor.Marshal([]any{uint8(KindInit), map[int]any{1: []byte{1, 2}, 2: make([]byte, 16)}})
	require.NoError(t, err)

	noBody, err := cbor.Marshal([]any{uint8(KindShutdown)})
	require.NoError(t, err)

	badVersion, err := cbor.Marshal([]any{uint8(KindHandshake), map[int]any{1: MagicNumber, 2: []uint32{1, 2}}})
	require.NoError(t, err)

	body := func(kind Kind, fields map[int]any) []byte {
		data, err := cbor.Marshal([]any{uint8(kind), fields})
		require.NoError(t, err)
		return data
	}
	id := make([]byte, 16)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"empty handshake body", []byte{0x82, 0x01, 0xa0}},
		{"empty data body", []byte{0x82, 0x07, 0xa0}},
		{"handshake without version", body(KindHandshake, map[int]any{1: MagicNumber})},
		{"handshake without magic", body(KindHandshake, map[int]any{2: version.Current})},
		{"init without secret", body(KindInit, map[int]any{1: id})},
		{"open stream without sid", body(KindOpenStream, map[int]any{2: 1})},
		{"close stream without sid", body(KindCloseStream, map[int]any{})},
		{"data header without length", body(KindDataHeader, map[int]any{1: 1, 2: 1})},
		{"data without payload", body(KindData, map[int]any{1: 1, 2: 1, 3: 0})},
		{"data without sid", body(KindData, map[int]any{1: 1, 4: []byte("x")})},
		{"raw without payload", body(KindRaw, map[int]any{})},
		{"body not a map", body(KindCloseStream, nil)},
		{"garbage", []byte{0xFF, 0x00, 0x13}},
		{"not an array", []byte{0x01}},
		{"unknown kind", unknownKind},
		{"short pid", shortPid},
		{"missing body", noBody},
		{"two-part version", badVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("Decode() error = %v, want ErrMalformedFrame", err)
			}
		})
	}
}

func TestDecode_EmptyRawPayload(t *testing.T) {
	data, err := Encode(Raw{})
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, KindRaw, KindOf(got))
	assert.Empty(t, got.(Raw).Payload)
}
