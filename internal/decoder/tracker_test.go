package decoder

import (
	"testing"

	"github.com/WendelHime/goswarm/internal/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeTrackerMessage(t *testing.T) {
	var tests = []struct {
		name     string
		given    models.Message
		expected string
	}{
		{
			name:     "join",
			given:    models.Message{Kind: models.MessageJoin, Port: 5001},
			expected: "JOIN:5001",
		},
		{
			name:     "get peers",
			given:    models.Message{Kind: models.MessageGetPeers, Port: 5002},
			expected: "GETPEERS:5002",
		},
		{
			name: "update with pieces",
			given: models.Message{
				Kind:   models.MessageUpdate,
				Addr:   models.Addr{Host: "192.168.0.10", Port: 5001},
				Pieces: models.NewPieceSet(5, 1, 2),
			},
			expected: "UPDATE:192.168.0.10:5001:1,2,5",
		},
		{
			name: "update without pieces",
			given: models.Message{
				Kind: models.MessageUpdate,
				Addr: models.Addr{Host: "127.0.0.1", Port: 5001},
			},
			expected: "UPDATE:127.0.0.1:5001:none",
		},
		{
			name: "peers snapshot",
			given: models.Message{Kind: models.MessagePeers, Peers: models.Snapshot{
				{Addr: models.Addr{Host: "127.0.0.1", Port: 5001}, Pieces: models.NewPieceSet(3, 1, 2)},
				{Addr: models.Addr{Host: "127.0.0.1", Port: 5002}, Pieces: models.PieceSet{}},
			}},
			expected: "PEERS|127.0.0.1:5001:1,2,3|127.0.0.1:5002:none",
		},
		{
			name:     "empty peers snapshot",
			given:    models.Message{Kind: models.MessagePeers, Peers: models.Snapshot{}},
			expected: "PEERS",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := EncodeTrackerMessage(tt.given)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(actual))
		})
	}
}

func TestParseTrackerMessage(t *testing.T) {
	var tests = []struct {
		name   string
		given  string
		assert func(t *testing.T, actual models.Message, err error)
	}{
		{
			name:  "join",
			given: "JOIN:5001",
			assert: func(t *testing.T, actual models.Message, err error) {
				assert.NoError(t, err)
				assert.Equal(t, models.MessageJoin, actual.Kind)
				assert.Equal(t, 5001, actual.Port)
			},
		},
		{
			name:  "join with trailing newline",
			given: "JOIN:5001\n",
			assert: func(t *testing.T, actual models.Message, err error) {
				assert.NoError(t, err)
				assert.Equal(t, 5001, actual.Port)
			},
		},
		{
			name:  "get peers",
			given: "GETPEERS:5003",
			assert: func(t *testing.T, actual models.Message, err error) {
				assert.NoError(t, err)
				assert.Equal(t, models.MessageGetPeers, actual.Kind)
				assert.Equal(t, 5003, actual.Port)
			},
		},
		{
			name:  "update",
			given: "UPDATE:192.168.0.10:5001:1,2,5",
			assert: func(t *testing.T, actual models.Message, err error) {
				assert.NoError(t, err)
				assert.Equal(t, models.MessageUpdate, actual.Kind)
				assert.Equal(t, models.Addr{Host: "192.168.0.10", Port: 5001}, actual.Addr)
				assert.Equal(t, models.NewPieceSet(1, 2, 5), actual.Pieces)
			},
		},
		{
			name:  "update from ipv6 host",
			given: "UPDATE:::1:5001:none",
			assert: func(t *testing.T, actual models.Message, err error) {
				assert.NoError(t, err)
				assert.Equal(t, models.Addr{Host: "::1", Port: 5001}, actual.Addr)
				assert.Empty(t, actual.Pieces)
			},
		},
		{
			name:  "peers",
			given: "PEERS|127.0.0.1:5001:1,2,3|127.0.0.1:5002:none",
			assert: func(t *testing.T, actual models.Message, err error) {
				assert.NoError(t, err)
				assert.Equal(t, models.MessagePeers, actual.Kind)
				assert.Equal(t, models.Snapshot{
					{Addr: models.Addr{Host: "127.0.0.1", Port: 5001}, Pieces: models.NewPieceSet(1, 2, 3)},
					{Addr: models.Addr{Host: "127.0.0.1", Port: 5002}, Pieces: models.PieceSet{}},
				}, actual.Peers)
			},
		},
		{
			name:  "peers without entries",
			given: "PEERS",
			assert: func(t *testing.T, actual models.Message, err error) {
				assert.NoError(t, err)
				assert.NotNil(t, actual.Peers)
				assert.Empty(t, actual.Peers)
			},
		},
		{
			name:  "peers with duplicated entry",
			given: "PEERS|127.0.0.1:5001:1|127.0.0.1:5001:2",
			assert: func(t *testing.T, actual models.Message, err error) {
				assert.ErrorIs(t, err, ErrMalformed)
			},
		},
		{
			name:  "join with bad port",
			given: "JOIN:abc",
			assert: func(t *testing.T, actual models.Message, err error) {
				assert.ErrorIs(t, err, ErrMalformed)
			},
		},
		{
			name:  "update with non numeric pieces",
			given: "UPDATE:127.0.0.1:5001:a,b",
			assert: func(t *testing.T, actual models.Message, err error) {
				assert.ErrorIs(t, err, ErrMalformed)
			},
		},
		{
			name:  "update without port",
			given: "UPDATE:127.0.0.1:1,2",
			assert: func(t *testing.T, actual models.Message, err error) {
				assert.ErrorIs(t, err, ErrMalformed)
			},
		},
		{
			name:  "unknown command",
			given: "LEAVE:5001",
			assert: func(t *testing.T, actual models.Message, err error) {
				assert.ErrorIs(t, err, ErrMalformed)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := ParseTrackerMessage([]byte(tt.given))
			tt.assert(t, actual, err)
		})
	}
}
