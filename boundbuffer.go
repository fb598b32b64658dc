package vkframe

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// BoundBuffer is a buffer together with the memory bound to it. Memory is
// set only when the buffer lives in host-visible memory.
type BoundBuffer struct {
	VKBuffer vk.Buffer
	Size     uint64
	Usage    vk.BufferUsageFlags
	Memory   HostMemory

	release func()
}

// NewBoundBuffer wraps an existing buffer. release runs once on Destroy.
func NewBoundBuffer(buffer vk.Buffer, size uint64, usage vk.BufferUsageFlags, memory HostMemory, release func()) *BoundBuffer {
	return &BoundBuffer{VKBuffer: buffer, Size: size, Usage: usage, Memory: memory, release: release}
}

// HostVisible reports whether the CPU can map the buffer.
func (b *BoundBuffer) HostVisible() bool {
	return b.Memory != nil
}

func (b *BoundBuffer) Write(offset uint64, data []byte) error {
	if b.Memory == nil {
		return ErrNotHostVisible
	}
	if offset+uint64(len(data)) > b.Size {
		return errors.Errorf("write of %d bytes at %d overflows buffer of %d", len(data), offset, b.Size)
	}
	return b.Memory.Write(offset, data)
}

func (b *BoundBuffer) Read(offset, size uint64) ([]byte, error) {
	if b.Memory == nil {
		return nil, ErrNotHostVisible
	}
	if offset+size > b.Size {
		return nil, errors.Errorf("read of %d bytes at %d overflows buffer of %d", size, offset, b.Size)
	}
	return b.Memory.Read(offset, size)
}

// DescriptorInfo describes the range [offset, offset+size) for a descriptor write.
func (b *BoundBuffer) DescriptorInfo(offset, size uint64) vk.DescriptorBufferInfo {
	return vk.DescriptorBufferInfo{
		Buffer: b.VKBuffer,
		Offset: vk.DeviceSize(offset),
		Range:  vk.DeviceSize(size),
	}
}

// Destroy frees the buffer and its memory. It is safe to call twice.
func (b *BoundBuffer) Destroy() {
	if b.release != nil {
		b.release()
		b.release = nil
	}
}

const hostCoherent = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)

const deviceLocal = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)

// CreateBoundBuffer creates a buffer, allocates memory with props and binds
// the two. On failure nothing is left allocated.
func (d *Device) CreateBoundBuffer(size uint64, usage vk.BufferUsageFlags, props vk.MemoryPropertyFlags) (*BoundBuffer, error) {
	if size == 0 {
		return nil, errors.New("create bound buffer: zero size")
	}
	cleanup := NewCleanup()

	buffer, err := d.CreateBuffer(size, usage)
	if err != nil {
		return nil, err
	}
	cleanup.Push(buffer.Destroy)

	mr := buffer.MemoryRequirements()
	memory, err := d.Allocate(uint64(mr.Size), mr.MemoryTypeBits, props)
	if err != nil {
		cleanup.Release()
		return nil, errors.Wrapf(err, "allocate %d bytes for buffer", size)
	}
	cleanup.Push(memory.Destroy)

	if err := buffer.Bind(memory, 0); err != nil {
		cleanup.Release()
		return nil, err
	}

	var host HostMemory
	if props&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) != 0 {
		host = memory
	}
	return NewBoundBuffer(buffer.VKBuffer, size, usage, host, cleanup.Transfer()), nil
}
