package vkframe

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
	lin "github.com/xlab/linmath"
)

// BufferObject is anything that can be copied into a GPU buffer as is.
type BufferObject interface {
	Bytes() []byte
}

// VertexDescriptor describes how a vertex stream is laid out for a pipeline.
type VertexDescriptor interface {
	BindingDescription() vk.VertexInputBindingDescription
	AttributeDescriptions() []vk.VertexInputAttributeDescription
}

// IndexSource is an index array of a known element type.
type IndexSource interface {
	BufferObject
	IndexType() vk.IndexType
	Len() int
}

// Vertex is the layout consumed by the geometry pipeline.
type Vertex struct {
	Pos      lin.Vec3
	Color    lin.Vec3
	TexCoord lin.Vec2
}

type VertexData []Vertex

func (v VertexData) Bytes() []byte {
	if len(v) == 0 {
		return nil
	}
	return ToBytes(unsafe.Pointer(&v[0]), len(v)*int(unsafe.Sizeof(Vertex{})))
}

func (VertexData) BindingDescription() vk.VertexInputBindingDescription {
	return vk.VertexInputBindingDescription{
		Binding:   0,
		Stride:    uint32(unsafe.Sizeof(Vertex{})),
		InputRate: vk.VertexInputRateVertex,
	}
}

func (VertexData) AttributeDescriptions() []vk.VertexInputAttributeDescription {
	var v Vertex
	return []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(v.Pos))},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(v.Color))},
		{Location: 2, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: uint32(unsafe.Offsetof(v.TexCoord))},
	}
}

type IndexSliceUint16 []uint16

func (i IndexSliceUint16) Bytes() []byte {
	if len(i) == 0 {
		return nil
	}
	return ToBytes(unsafe.Pointer(&i[0]), len(i)*2)
}

func (i IndexSliceUint16) IndexType() vk.IndexType {
	return vk.IndexTypeUint16
}

func (i IndexSliceUint16) Len() int {
	return len(i)
}

type IndexSliceUint32 []uint32

func (i IndexSliceUint32) Bytes() []byte {
	if len(i) == 0 {
		return nil
	}
	return ToBytes(unsafe.Pointer(&i[0]), len(i)*4)
}

func (i IndexSliceUint32) IndexType() vk.IndexType {
	return vk.IndexTypeUint32
}

func (i IndexSliceUint32) Len() int {
	return len(i)
}

// CubeVertices returns a unit cube with per-face texture coordinates. Faces
// wind counter-clockwise when seen from outside.
func CubeVertices() (VertexData, IndexSliceUint16) {
	type face struct {
		normal, u, v lin.Vec3
		color        lin.Vec3
	}
	faces := []face{
		{lin.Vec3{0, 0, 1}, lin.Vec3{1, 0, 0}, lin.Vec3{0, 1, 0}, lin.Vec3{1, 0.3, 0.3}},
		{lin.Vec3{0, 0, -1}, lin.Vec3{-1, 0, 0}, lin.Vec3{0, 1, 0}, lin.Vec3{0.3, 1, 0.3}},
		{lin.Vec3{1, 0, 0}, lin.Vec3{0, 0, -1}, lin.Vec3{0, 1, 0}, lin.Vec3{0.3, 0.3, 1}},
		{lin.Vec3{-1, 0, 0}, lin.Vec3{0, 0, 1}, lin.Vec3{0, 1, 0}, lin.Vec3{1, 1, 0.3}},
		{lin.Vec3{0, 1, 0}, lin.Vec3{1, 0, 0}, lin.Vec3{0, 0, -1}, lin.Vec3{1, 0.3, 1}},
		{lin.Vec3{0, -1, 0}, lin.Vec3{1, 0, 0}, lin.Vec3{0, 0, 1}, lin.Vec3{0.3, 1, 1}},
	}
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	uvs := [4]lin.Vec2{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

	vertices := make(VertexData, 0, 24)
	indices := make(IndexSliceUint16, 0, 36)
	for _, f := range faces {
		base := uint16(len(vertices))
		for c, corner := range corners {
			var p lin.Vec3
			for k := 0; k < 3; k++ {
				p[k] = 0.5 * (f.normal[k] + corner[0]*f.u[k] + corner[1]*f.v[k])
			}
			vertices = append(vertices, Vertex{Pos: p, Color: f.color, TexCoord: uvs[c]})
		}
		indices = append(indices, base, base+1, base+2, base+2, base+3, base)
	}
	return vertices, indices
}
