package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	l := Default()
	assert.Equal(t, 6, l.DstPortIndex)
	assert.Equal(t, 7, l.ProtocolIndex)
	assert.Equal(t, 8, l.MinFields())
	assert.Len(t, l.Fields, 14)
	assert.Equal(t, DstPortField, l.Fields[l.DstPortIndex])
	assert.Equal(t, ProtocolField, l.Fields[l.ProtocolIndex])
}

func TestDefault_ReturnsIndependentCopies(t *testing.T) {
	a := Default()
	a.Fields[0] = "mutated"
	assert.Equal(t, "version", Default().Fields[0])
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		format    string
		wantDst   int
		wantProto int
		wantMin   int
	}{
		{"empty uses default", "", 6, 7, 8},
		{"custom order", "timestamp srcaddr dstaddr dstport srcport protocol", 3, 5, 6},
		{"protocol first", "protocol dstport", 1, 0, 2},
		{"extra whitespace", "  a\tb  dstport \n protocol ", 2, 3, 4},
		{"first occurrence wins", "dstport protocol dstport protocol", 0, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := Resolve(tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDst, l.DstPortIndex)
			assert.Equal(t, tt.wantProto, l.ProtocolIndex)
			assert.Equal(t, tt.wantMin, l.MinFields())
		})
	}
}

func TestResolve_MissingFields(t *testing.T) {
	for _, format := range []string{
		"srcaddr dstaddr protocol",
		"srcaddr dstport",
		"dst_port protocol",
		"DSTPORT PROTOCOL",
		"   ",
	} {
		_, err := Resolve(format)
		assert.ErrorIs(t, err, ErrMissingField, "format %q", format)
	}
}

func TestLayout_String(t *testing.T) {
	l, err := Resolve("a  dstport\tprotocol")
	require.NoError(t, err)
	assert.Equal(t, "a dstport protocol", l.String())
}
