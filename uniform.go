package vkframe

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// BufferCreator creates buffers with bound memory; *Device implements it.
type BufferCreator interface {
	CreateBoundBuffer(size uint64, usage vk.BufferUsageFlags, props vk.MemoryPropertyFlags) (*BoundBuffer, error)
}

// UniformBuffers is one host-visible uniform buffer carved into a slice per
// swapchain image. Slice i may only be written once the frame that last
// used image i has completed.
type UniformBuffers struct {
	Buffer    *BoundBuffer
	Slices    []*Allocation
	SliceSize uint64
}

// NewUniformBuffers allocates count slices of size bytes, each starting at a
// multiple of align (minUniformBufferOffsetAlignment).
func NewUniformBuffers(dev BufferCreator, count int, size, align uint64) (*UniformBuffers, error) {
	if count <= 0 || size == 0 {
		return nil, errors.Errorf("uniform buffers: %d slices of %d bytes", count, size)
	}
	stride := makeAlignUp(size, align)
	total := stride * uint64(count)

	allocator := &LinearAllocator{Size: total}
	slices := make([]*Allocation, count)
	for i := range slices {
		slices[i] = allocator.Allocate(size, align)
		if slices[i] == nil {
			return nil, errors.Errorf("uniform buffers: slice %d does not fit in %d bytes", i, total)
		}
	}

	buf, err := dev.CreateBoundBuffer(total, vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit), hostCoherent)
	if err != nil {
		return nil, errors.Wrap(err, "uniform buffers")
	}
	Logger().Debug("uniform buffers created", "slices", count, "slice_size", size, "stride", stride)
	return &UniformBuffers{Buffer: buf, Slices: slices, SliceSize: size}, nil
}

func (u *UniformBuffers) Count() int {
	return len(u.Slices)
}

func (u *UniformBuffers) Slice(index int) *Allocation {
	return u.Slices[index]
}

// Update writes data into slice index.
func (u *UniformBuffers) Update(index int, data []byte) error {
	if index < 0 || index >= len(u.Slices) {
		return errors.Wrapf(ErrResourceNotFound, "uniform slice %d of %d", index, len(u.Slices))
	}
	if uint64(len(data)) > u.SliceSize {
		return errors.Errorf("uniform data of %d bytes exceeds slice size %d", len(data), u.SliceSize)
	}
	return u.Buffer.Write(u.Slices[index].Offset, data)
}

func (u *UniformBuffers) Destroy() {
	u.Buffer.Destroy()
}
