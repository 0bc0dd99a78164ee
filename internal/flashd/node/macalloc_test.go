package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMACAllocator_SequentialAssignment(t *testing.T) {
	a := NewMACAllocator()

	first, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, [6]byte{0x00, 0xba, 0xbe, 0xca, 0x00, 0x00}, first)

	second, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, [6]byte{0x00, 0xba, 0xbe, 0xca, 0x00, 0x01}, second)
}

func TestMACAllocator_RefusesOnceExhausted(t *testing.T) {
	a := NewMACAllocator()
	a.next = 0xffff

	last, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, [6]byte{0x00, 0xba, 0xbe, 0xca, 0xff, 0xff}, last)
	assert.Equal(t, 0, a.Remaining())

	_, err = a.Allocate()
	assert.ErrorIs(t, err, ErrPoolExhausted)
}
