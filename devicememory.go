package vkframe

import (
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// HostMemory is memory the CPU can write and read.
type HostMemory interface {
	Write(offset uint64, data []byte) error
	Read(offset, size uint64) ([]byte, error)
}

// DeviceMemory maps to Vulkan DeviceMemory and can either be memory on the host or on the device
type DeviceMemory struct {
	Device         *Device
	VKDeviceMemory vk.DeviceMemory
	Size           uint64
	MapCount       int32
}

// IsMapped returns true if the device memory is currently mapped
func (d *DeviceMemory) IsMapped() bool {
	return atomic.LoadInt32(&d.MapCount) > 0
}

func (d *DeviceMemory) Destroy() {
	vk.FreeMemory(d.Device.VKDevice, d.VKDeviceMemory, nil)
}

// MapWithOffset will map the memory with a certain size and offset
func (d *DeviceMemory) MapWithOffset(size uint64, offset uint64) (unsafe.Pointer, error) {
	if offset+size > d.Size {
		return nil, errors.Errorf("map range [%d,%d) exceeds memory size %d", offset, offset+size, d.Size)
	}
	var res unsafe.Pointer
	if err := vkError(vk.MapMemory(d.Device.VKDevice, d.VKDeviceMemory, vk.DeviceSize(offset), vk.DeviceSize(size), 0, &res), "map memory"); err != nil {
		return nil, err
	}
	atomic.AddInt32(&d.MapCount, 1)
	return res, nil
}

func (d *DeviceMemory) Unmap() {
	vk.UnmapMemory(d.Device.VKDevice, d.VKDeviceMemory)
	atomic.AddInt32(&d.MapCount, -1)
}

// Write maps the range, copies data and unmaps. The memory is expected to be
// host coherent so no flush is issued.
func (d *DeviceMemory) Write(offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	pm, err := d.MapWithOffset(uint64(len(data)), offset)
	if err != nil {
		return err
	}
	copy(ToBytes(pm, len(data)), data)
	d.Unmap()
	return nil
}

// Read copies size bytes starting at offset out of the memory.
func (d *DeviceMemory) Read(offset, size uint64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	pm, err := d.MapWithOffset(size, offset)
	if err != nil {
		return nil, err
	}
	out := make([]byte, size)
	copy(out, ToBytes(pm, int(size)))
	d.Unmap()
	return out, nil
}
