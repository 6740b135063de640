package protocol

import (
	"testing"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		number string
		want   string
	}{
		{"0", "hopopt"},
		{"1", "icmp"},
		{"6", "tcp"},
		{"17", "udp"},
		{"41", "ipv6"},
		{"58", "ipv6-icmp"},
		{"93", "ax.25"},
		{"124", "isis over ipv4"},
		{"135", "mobility header"},
		{"138", "manet"},
		{"145", "nsh"},
	}
	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.number))
		})
	}
}

func TestResolve_Unknown(t *testing.T) {
	// Gaps in the registry, out-of-range numbers and non-canonical text all miss.
	for _, in := range []string{"61", "63", "99", "114", "146", "255", "-1", "06", " 6", "tcp", "TCP", ""} {
		assert.Equal(t, Unknown, Resolve(in), "input %q", in)
	}
}

func TestResolve_AlwaysLowercase(t *testing.T) {
	for num := range ianaNames {
		name := Resolve(num)
		assert.NotEqual(t, Unknown, name)
		for _, r := range name {
			assert.False(t, r >= 'A' && r <= 'Z', "name %q for %s is not lowercase", name, num)
		}
	}
	assert.Equal(t, 141, Len())
}

func TestName(t *testing.T) {
	assert.Equal(t, "tcp", Name(layers.IPProtocolTCP))
	assert.Equal(t, "udp", Name(layers.IPProtocolUDP))
	assert.Equal(t, "sctp", Name(layers.IPProtocolSCTP))
	assert.Equal(t, Unknown, Name(layers.IPProtocol(250)))
}
