package vkframe

import (
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
	lin "github.com/xlab/linmath"
)

// TransformSize is the push constant block of the geometry pipeline: one
// column-major model matrix.
const TransformSize = uint32(unsafe.Sizeof(lin.Mat4x4{}))

// CameraUniform is the per-image uniform read by the geometry vertex shader.
type CameraUniform struct {
	View lin.Mat4x4
	Proj lin.Mat4x4
}

// NewCameraUniform looks from eye at center with a perspective projection
// adjusted for Vulkan's inverted clip space Y.
func NewCameraUniform(eye, center, up lin.Vec3, fovDegrees, aspect, near, far float32) CameraUniform {
	var u CameraUniform
	u.View.LookAt(&eye, &center, &up)
	u.Proj.Perspective(lin.DegreesToRadians(fovDegrees), aspect, near, far)
	u.Proj[1][1] *= -1
	return u
}

func (u *CameraUniform) Bytes() []byte {
	return ToBytes(unsafe.Pointer(&u.View[0]), int(unsafe.Sizeof(*u)))
}

// Mesh is a device-local vertex and index buffer pair.
type Mesh struct {
	Vertices   *BoundBuffer
	Indices    *BoundBuffer
	IndexCount uint32
	IndexType  vk.IndexType
}

// NewMesh uploads vertices and indices through the staged transfer path.
func NewMesh(u *Uploader, vertices BufferObject, indices IndexSource) (*Mesh, error) {
	if indices.Len() == 0 {
		return nil, errors.New("mesh has no indices")
	}
	vb, err := u.UploadBuffer(vertices.Bytes(), vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		return nil, errors.Wrap(err, "mesh vertices")
	}
	ib, err := u.UploadBuffer(indices.Bytes(), vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
	if err != nil {
		vb.Destroy()
		return nil, errors.Wrap(err, "mesh indices")
	}
	return &Mesh{
		Vertices:   vb,
		Indices:    ib,
		IndexCount: uint32(indices.Len()),
		IndexType:  indices.IndexType(),
	}, nil
}

func (m *Mesh) Destroy() {
	m.Vertices.Destroy()
	m.Indices.Destroy()
}

// Drawable is anything the geometry subpass can draw.
type Drawable interface {
	DrawMesh() *Mesh
	TextureSet() *DescriptorSet
	// PushConstants returns the per-draw block, at most TransformSize bytes.
	PushConstants() []byte
}

// Model places a mesh in the world with a texture.
type Model struct {
	Name      string
	Mesh      *Mesh
	Texture   *DescriptorSet
	Transform lin.Mat4x4
}

// NewModel returns a model at the origin.
func NewModel(name string, mesh *Mesh, texture *DescriptorSet) *Model {
	m := &Model{Name: name, Mesh: mesh, Texture: texture}
	m.Transform.Identity()
	return m
}

func (m *Model) DrawMesh() *Mesh {
	return m.Mesh
}

func (m *Model) TextureSet() *DescriptorSet {
	return m.Texture
}

func (m *Model) PushConstants() []byte {
	return ToBytes(unsafe.Pointer(&m.Transform[0]), int(TransformSize))
}

// Translate moves the model to x, y, z keeping its rotation.
func (m *Model) Translate(x, y, z float32) {
	m.Transform[3][0] = x
	m.Transform[3][1] = y
	m.Transform[3][2] = z
}

// Rotate rotates the model by angle radians around axis x, y, z.
func (m *Model) Rotate(x, y, z, angle float32) {
	var prev lin.Mat4x4
	prev.Dup(&m.Transform)
	m.Transform.Rotate(&prev, x, y, z, angle)
}

// validateDrawable reports drawables the recorder cannot draw.
func validateDrawable(i int, d Drawable, pushLimit uint32) error {
	if d == nil {
		return errors.Wrapf(ErrResourceNotFound, "drawable %d is nil", i)
	}
	mesh := d.DrawMesh()
	if mesh == nil || mesh.Vertices == nil || mesh.Indices == nil || mesh.IndexCount == 0 {
		return errors.Wrapf(ErrResourceNotFound, "drawable %d has no mesh", i)
	}
	if d.TextureSet() == nil {
		return errors.Wrapf(ErrResourceNotFound, "drawable %d has no texture set", i)
	}
	if n := uint32(len(d.PushConstants())); n > pushLimit {
		return errors.Wrapf(ErrPushConstantsTooLarge, "drawable %d pushes %d bytes, limit %d", i, n, pushLimit)
	}
	return nil
}
