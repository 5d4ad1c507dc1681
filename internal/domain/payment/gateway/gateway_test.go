package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct{}

func (stubGateway) Initialize(context.Context, InitRequest) (*Session, error) { return &Session{}, nil }
func (stubGateway) Verify(context.Context, string) (*Verification, error)    { return &Verification{}, nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(MethodPaystack, stubGateway{})
	r.Register(MethodAlipay, stubGateway{})

	assert.True(t, r.Hosted(MethodPaystack))
	assert.False(t, r.Hosted(MethodCard))

	_, err := r.Get(MethodWechat)
	assert.ErrorIs(t, err, ErrNotRegistered)

	assert.Equal(t, []string{MethodAlipay, MethodPaystack}, r.Methods())
}

func TestMinorToMajor(t *testing.T) {
	assert.Equal(t, "210.00", minorToMajor(21000))
	assert.Equal(t, "0.05", minorToMajor(5))
}

func TestMajorToMinor(t *testing.T) {
	v, err := majorToMinor("210.00")
	require.NoError(t, err)
	assert.EqualValues(t, 21000, v)

	v, err = majorToMinor("")
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = majorToMinor("abc")
	assert.Error(t, err)
}
