package chunk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHeaderMarshalUnmarshalRoundTrip(t *testing.T) {
	start := time.Unix(1_700_000_000, 0).UTC()
	end := time.Unix(1_700_000_060, 0).UTC()
	var pub [PublicKeyLen]byte
	for i := range pub {
		pub[i] = byte(i)
	}

	h := Header{
		Version:   FormatVersion,
		Length:    4096,
		Writeback: true,
		Start:     start,
		End:       end,
		PubKey:    pub,
	}

	b := h.Marshal()
	require.Len(t, b, HeaderLen)

	got, err := UnmarshalHeader(b)
	require.NoError(t, err)
	require.Equal(t, h.Version, got.Version)
	require.Equal(t, h.Length, got.Length)
	require.Equal(t, h.Writeback, got.Writeback)
	require.True(t, h.Start.Equal(got.Start), "start: want %v got %v", h.Start, got.Start)
	require.True(t, h.End.Equal(got.End), "end: want %v got %v", h.End, got.End)
	require.Equal(t, h.PubKey, got.PubKey)
}

func TestUnmarshalHeaderBadMagic(t *testing.T) {
	b := make([]byte, HeaderLen)
	_, err := UnmarshalHeader(b)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestHeaderPutIntoMatchesMarshal(t *testing.T) {
	h := Header{Version: 1, Length: 10, Start: time.Unix(1000, 0).UTC(), End: time.Unix(1000, 0).UTC()}
	want := h.Marshal()

	got := make([]byte, HeaderLen)
	h.PutInto(got)
	require.Equal(t, want, got)
}
