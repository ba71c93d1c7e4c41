package rtp

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, maxPayload int) *PackageHandler {
	t.Helper()
	h, err := NewPackageHandler(maxPayload, PayloadTypePCMU)
	require.NoError(t, err)
	return h
}

func TestNewPackageHandler_InvalidSize(t *testing.T) {
	_, err := NewPackageHandler(0, PayloadTypePCMU)
	assert.ErrorIs(t, err, ErrInvalidPayloadSize)

	_, err = NewPackageHandler(MaxPacketSize, PayloadTypePCMU)
	assert.ErrorIs(t, err, ErrInvalidPayloadSize)
}

func TestCreatePackage_BackToBack(t *testing.T) {
	h := newTestHandler(t, 160)
	payload := bytes.Repeat([]byte{0x5A}, 160)

	first, err := h.CreatePackage(payload)
	require.NoError(t, err)
	require.Len(t, first, HeaderSize+160)
	firstHdr, err := ReadHeader(first)
	require.NoError(t, err)

	second, err := h.CreatePackage(payload)
	require.NoError(t, err)
	secondHdr, err := ReadHeader(second)
	require.NoError(t, err)

	assert.Equal(t, uint8(2), secondHdr.Version())
	assert.Equal(t, PayloadTypePCMU, secondHdr.PayloadType())
	assert.Equal(t, firstHdr.SequenceNumber()+1, secondHdr.SequenceNumber())
	assert.Equal(t, firstHdr.SSRC(), secondHdr.SSRC())
	assert.Equal(t, h.SSRC(), secondHdr.SSRC())
	assert.Equal(t, payload, second[HeaderSize:])
}

func TestCreatePackage_SequenceWraps(t *testing.T) {
	h := newTestHandler(t, 32)
	h.sequenceNumber = 65535

	pkt, err := h.CreatePackage([]byte{1})
	require.NoError(t, err)
	hdr, _ := ReadHeader(pkt)
	assert.Equal(t, uint16(65535), hdr.SequenceNumber())

	pkt, err = h.CreatePackage([]byte{1})
	require.NoError(t, err)
	hdr, _ = ReadHeader(pkt)
	assert.Equal(t, uint16(0), hdr.SequenceNumber())
}

func TestCreatePackage_TooLarge(t *testing.T) {
	h := newTestHandler(t, 160)
	seq := h.SequenceNumber()

	_, err := h.CreatePackage(make([]byte, 161))
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.Equal(t, seq, h.SequenceNumber(), "номер не должен расти при ошибке")
}

func TestCreatePackage_EmptyPayload(t *testing.T) {
	h := newTestHandler(t, 160)
	pkt, err := h.CreatePackage(nil)
	require.NoError(t, err)
	assert.Len(t, pkt, HeaderSize)
	assert.True(t, IsValidPacket(pkt))
}

func TestCurrentTimestamp_Monotonic(t *testing.T) {
	h := newTestHandler(t, 160)
	base := h.startTime
	h.now = func() time.Time { return base.Add(250 * time.Millisecond) }

	assert.Equal(t, h.timestampOffset+250, h.CurrentTimestamp())

	pkt, err := h.CreatePackage([]byte{0})
	require.NoError(t, err)
	hdr, _ := ReadHeader(pkt)
	assert.Equal(t, h.timestampOffset+250, hdr.Timestamp())
}

func TestCreateSilencePackage(t *testing.T) {
	h := newTestHandler(t, 64)
	seq := h.SequenceNumber()

	// испачкаем рабочий буфер
	for i := range h.WorkBuffer() {
		h.WorkBuffer()[i] = 0xFF
	}

	pkt := h.CreateSilencePackage()
	require.Len(t, pkt, HeaderSize+64)

	hdr := h.Header()
	assert.Equal(t, uint8(2), hdr.Version())
	assert.False(t, hdr.Marker())
	assert.Equal(t, PayloadType(0), hdr.PayloadType())
	assert.Equal(t, uint16(0), hdr.SequenceNumber())
	assert.Equal(t, uint32(0), hdr.Timestamp())
	assert.Equal(t, uint32(0), hdr.SSRC())
	assert.Equal(t, make([]byte, 64), h.Payload())
	assert.Equal(t, seq, h.SequenceNumber())
}

func TestDecode(t *testing.T) {
	sender := newTestHandler(t, 160)
	receiver := newTestHandler(t, 160)

	pkt, err := sender.CreatePackage([]byte("голос"))
	require.NoError(t, err)

	require.NoError(t, receiver.Decode(pkt))
	gotHdr := receiver.Header()
	assert.Equal(t, sender.SSRC(), gotHdr.SSRC())
	assert.Equal(t, []byte("голос"), receiver.Payload())

	assert.ErrorIs(t, receiver.Decode([]byte{0x00}), ErrMalformedPacket)
	hdr := NewHeader()
	big := append(hdr[:], make([]byte, 161)...)
	assert.ErrorIs(t, receiver.Decode(big), ErrPayloadTooLarge)
}

func TestSetActualPayloadSize(t *testing.T) {
	h := newTestHandler(t, 16)
	require.NoError(t, h.SetActualPayloadSize(10))
	assert.Equal(t, 10, h.ActualPayloadSize())
	assert.Len(t, h.Payload(), 10)

	assert.ErrorIs(t, h.SetActualPayloadSize(17), ErrPayloadTooLarge)
	assert.Error(t, h.SetActualPayloadSize(-1))
}

func TestPackageHandler_Sizes(t *testing.T) {
	h := newTestHandler(t, 320)
	assert.Equal(t, 320, h.MaximumPayloadSize())
	assert.Equal(t, 332, h.MaximumPackageSize())
	assert.Equal(t, 12, h.HeaderSize())

	h.SetPayloadType(PayloadTypePCMA)
	assert.Equal(t, PayloadTypePCMA, h.PayloadType())
}
