package vkframe

import (
	vk "github.com/vulkan-go/vulkan"
)

// Buffer is an unbound buffer handle. Most code wants a BoundBuffer.
type Buffer struct {
	Device   *Device
	VKBuffer vk.Buffer
	Size     uint64
	Usage    vk.BufferUsageFlags
}

// CreateBuffer creates a buffer owned by a single queue family.
func (d *Device) CreateBuffer(size uint64, usage vk.BufferUsageFlags) (*Buffer, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if err := vkError(vk.CreateBuffer(d.VKDevice, &info, nil, &buffer), "create buffer"); err != nil {
		return nil, err
	}
	return &Buffer{Device: d, VKBuffer: buffer, Size: size, Usage: usage}, nil
}

func (b *Buffer) MemoryRequirements() vk.MemoryRequirements {
	var mr vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(b.Device.VKDevice, b.VKBuffer, &mr)
	mr.Deref()
	return mr
}

// Bind attaches memory at offset. A buffer can be bound once.
func (b *Buffer) Bind(memory *DeviceMemory, offset uint64) error {
	return vkError(vk.BindBufferMemory(b.Device.VKDevice, b.VKBuffer, memory.VKDeviceMemory, vk.DeviceSize(offset)), "bind buffer memory")
}

func (b *Buffer) Destroy() {
	vk.DestroyBuffer(b.Device.VKDevice, b.VKBuffer, nil)
}
