package vkframe

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
	lin "github.com/xlab/linmath"
)

func TestCameraUniform(t *testing.T) {
	u := NewCameraUniform(lin.Vec3{2, 2, 2}, lin.Vec3{0, 0, 0}, lin.Vec3{0, 0, 1}, 45, 16.0/9.0, 0.1, 100)
	assert.Less(t, u.Proj[1][1], float32(0), "clip space Y is flipped")
	assert.Len(t, u.Bytes(), int(unsafe.Sizeof(CameraUniform{})))
	assert.Len(t, u.Bytes(), 128)
}

func TestModelTransform(t *testing.T) {
	m := NewModel("m", nil, nil)
	var identity lin.Mat4x4
	identity.Identity()
	assert.Equal(t, identity, m.Transform)

	m.Translate(1, 2, 3)
	assert.Equal(t, float32(1), m.Transform[3][0])
	assert.Equal(t, float32(2), m.Transform[3][1])
	assert.Equal(t, float32(3), m.Transform[3][2])

	m.Rotate(0, 0, 1, 0)
	assert.InDelta(t, 1.0, m.Transform[0][0], 1e-6)
	assert.InDelta(t, 1.0, m.Transform[3][0], 1e-6)

	pc := m.PushConstants()
	assert.Len(t, pc, int(TransformSize))
	assert.Equal(t, uint32(64), TransformSize)
}

func TestNewMesh(t *testing.T) {
	dev := newFakeTransfer()
	vertices, indices := CubeVertices()
	mesh, err := NewMesh(NewUploader(dev), vertices, indices)
	require.NoError(t, err)
	assert.Equal(t, uint32(indices.Len()), mesh.IndexCount)
	assert.Equal(t, vk.IndexTypeUint16, mesh.IndexType)
	assert.NotZero(t, mesh.Vertices.Usage&vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	assert.NotZero(t, mesh.Indices.Usage&vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
	assert.Equal(t, vertices.Bytes(), dev.backing[mesh.Vertices].data)
	assert.Equal(t, 2, dev.liveBuffers())

	mesh.Destroy()
	assert.Zero(t, dev.liveBuffers())

	_, err = NewMesh(NewUploader(dev), vertices, IndexSliceUint16{})
	assert.Error(t, err)
}
