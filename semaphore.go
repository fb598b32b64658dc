package vkframe

import (
	vk "github.com/vulkan-go/vulkan"
)

// Semaphore orders work between submissions on the GPU.
type Semaphore struct {
	Device      *Device
	VKSemaphore vk.Semaphore
}

func (d *Device) CreateSemaphore() (*Semaphore, error) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var sema vk.Semaphore
	if err := vkError(vk.CreateSemaphore(d.VKDevice, &info, nil, &sema), "create semaphore"); err != nil {
		return nil, err
	}
	return &Semaphore{Device: d, VKSemaphore: sema}, nil
}

func (s *Semaphore) Destroy() {
	vk.DestroySemaphore(s.Device.VKDevice, s.VKSemaphore, nil)
}
