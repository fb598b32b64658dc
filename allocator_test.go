package vkframe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlign(t *testing.T) {
	assert.EqualValues(t, 12, makeAlignUp(12, 3))
	assert.EqualValues(t, 12, makeAlignUp(10, 3))
	assert.EqualValues(t, 7, makeAlignUp(7, 0))
	assert.EqualValues(t, 256, makeAlignUp(1, 256))
}

func TestAllocator(t *testing.T) {
	a := LinearAllocator{Size: 1024}

	assert.Nil(t, a.Allocate(2048, 1), "larger than the block")

	first := a.Allocate(512, 1)
	require.NotNil(t, first)
	assert.EqualValues(t, 0, first.Offset)

	assert.Nil(t, a.Allocate(768, 1), "only 512 bytes left")

	second := a.Allocate(500, 1)
	require.NotNil(t, second)
	assert.EqualValues(t, 512, second.Offset)

	assert.Nil(t, a.Allocate(50, 1))
	require.NotNil(t, a.Allocate(5, 1))
	assert.Nil(t, a.Allocate(20, 1))

	a.Free(second)
	again := a.Allocate(500, 1)
	require.NotNil(t, again)
	assert.EqualValues(t, 512, again.Offset, "freed gap is reused")

	a.Free(first)
	head := a.Allocate(20, 1)
	require.NotNil(t, head)
	assert.EqualValues(t, 0, head.Offset, "head of the block is reused first")
}

func TestAllocatorAlignment(t *testing.T) {
	a := LinearAllocator{Size: 1024}

	var offsets []uint64
	for i := 0; i < 4; i++ {
		s := a.Allocate(100, 256)
		require.NotNil(t, s)
		offsets = append(offsets, s.Offset)
	}
	assert.Equal(t, []uint64{0, 256, 512, 768}, offsets)
	assert.Nil(t, a.Allocate(100, 256), "aligned offset 1024 is past the end")
}
