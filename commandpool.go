package vkframe

import (
	vk "github.com/vulkan-go/vulkan"
)

type CommandPool struct {
	Device        *Device
	FamilyIndex   int
	VKCommandPool vk.CommandPool
}

func (c *CommandPool) Destroy() {
	vk.DestroyCommandPool(c.Device.VKDevice, c.VKCommandPool, nil)
}

// AllocateBuffers allocates count primary command buffers.
func (c *CommandPool) AllocateBuffers(count int) ([]*CommandBuffer, error) {
	if count <= 0 {
		return nil, nil
	}
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        c.VKCommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}

	cmdBuffers := make([]vk.CommandBuffer, count)
	if err := vkError(vk.AllocateCommandBuffers(c.Device.VKDevice, &info, cmdBuffers), "allocate command buffers"); err != nil {
		return nil, err
	}

	ret := make([]*CommandBuffer, count)
	for i := range ret {
		ret[i] = &CommandBuffer{VKCommandBuffer: cmdBuffers[i]}
	}
	return ret, nil
}

// AllocateOneTime allocates a buffer that begins with the one time submit flag.
func (c *CommandPool) AllocateOneTime() (*CommandBuffer, error) {
	ret, err := c.AllocateBuffers(1)
	if err != nil {
		return nil, err
	}
	ret[0].oneTime = true
	return ret[0], nil
}

func (c *CommandPool) FreeBuffers(bs []*CommandBuffer) {
	if len(bs) == 0 {
		return
	}
	vk.FreeCommandBuffers(c.Device.VKDevice, c.VKCommandPool, uint32(len(bs)), commandBufferHandles(bs))
}

func (c *CommandPool) FreeBuffer(b *CommandBuffer) {
	vk.FreeCommandBuffers(c.Device.VKDevice, c.VKCommandPool, 1, []vk.CommandBuffer{b.VKCommandBuffer})
}

// CreateCommandPool creates a pool whose buffers can be reset individually.
// transient hints that buffers are short lived, as for uploads.
func (d *Device) CreateCommandPool(familyIndex int, transient bool) (*CommandPool, error) {
	flags := vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit)
	if transient {
		flags |= vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit)
	}
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            flags,
		QueueFamilyIndex: uint32(familyIndex),
	}

	var commandPool vk.CommandPool
	if err := vkError(vk.CreateCommandPool(d.VKDevice, &info, nil, &commandPool), "create command pool"); err != nil {
		return nil, err
	}
	return &CommandPool{Device: d, FamilyIndex: familyIndex, VKCommandPool: commandPool}, nil
}
