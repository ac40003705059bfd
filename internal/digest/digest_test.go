package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_KnownVectors(t *testing.T) {
	tests := []struct {
		alg  Algorithm
		want string
	}{
		{SHA1, "c3d8b80f92eaf79c90a1b99f37a62c84b1494a38"},
		{SHA256, "86900f25bd2ee285bc6c22800cfb8f2c3411e45c9f53b3ba5a8017af9d6b6b05"},
		{SHA384, "a58a04e22b455b3861a29b45d5cc7fc669d3502b8fae9afb140d5b1c8be51ae99c0367553612191e4ab9ad8b4a6b1adc"},
		{SHA512, "ee21095236a9c037f705f41ffa3cf60869891fcdb461c5c8fe50e5b1711a27bfc02de2e387228651bdd034113cc59af777fdb9c915b70fdbed0eeacf7113296b"},
	}

	for _, tt := range tests {
		t.Run(tt.alg.String(), func(t *testing.T) {
			// "abc" is hashed as its hex form "616263".
			got, err := Compute("abc", tt.alg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompute_Deterministic(t *testing.T) {
	material := "SECRETA110.008402024:01:01-00:00:00S1"
	first, err := Compute(material, SHA512)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Compute(material, SHA512)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCompute_NoDelimiters(t *testing.T) {
	// Different splits of the same concatenation collide; the gateway relies
	// on plain concatenation.
	a, err := Compute("AB"+"C", SHA256)
	require.NoError(t, err)
	b, err := Compute("A"+"BC", SHA256)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCompute_UnsupportedAlgorithm(t *testing.T) {
	_, err := Compute("abc", Algorithm("MD5"))
	require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		name    string
		want    Algorithm
		wantErr bool
	}{
		{"SHA256", SHA256, false},
		{"sha256", SHA256, false},
		{"SHA-256", SHA256, false},
		{" SHA512 ", SHA512, false},
		{"sha384", SHA384, false},
		{"SHA1", SHA1, false},
		{"MD5", "", true},
		{"HMACSHA256", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAlgorithm(tt.name)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("abc123", "abc123"))
	assert.False(t, Equal("abc123", "ABC123"))
	assert.False(t, Equal("abc123", "abc12"))
	assert.False(t, Equal("abc123", ""))
}
