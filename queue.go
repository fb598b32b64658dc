package vkframe

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

type Queue struct {
	Device      *Device
	FamilyIndex int
	VKQueue     vk.Queue
}

func (q *Queue) WaitIdle() error {
	return vkError(vk.QueueWaitIdle(q.VKQueue), "queue wait idle")
}

// SubmitWaitIdle submits buffers and blocks until the queue drains.
func (q *Queue) SubmitWaitIdle(buffers ...*CommandBuffer) error {
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: uint32(len(buffers)),
		PCommandBuffers:    commandBufferHandles(buffers),
	}
	if err := vkError(vk.QueueSubmit(q.VKQueue, 1, []vk.SubmitInfo{submitInfo}, nil), "queue submit"); err != nil {
		return err
	}
	return q.WaitIdle()
}

// SubmitFrame submits one frame's command buffer. The GPU waits on wait at
// the color attachment output stage; signal and fence fire on completion.
func (q *Queue) SubmitFrame(cmd *CommandBuffer, wait, signal *Semaphore, fence *Fence) error {
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{wait.VKSemaphore},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cmd.VKCommandBuffer},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{signal.VKSemaphore},
	}
	return vkError(vk.QueueSubmit(q.VKQueue, 1, []vk.SubmitInfo{submitInfo}, fence.VKFence), "submit frame")
}

func (q *Queue) String() string {
	return fmt.Sprintf("{Device: %s QueueFamily: %d}", q.Device.String(), q.FamilyIndex)
}

func commandBufferHandles(buffers []*CommandBuffer) []vk.CommandBuffer {
	b := make([]vk.CommandBuffer, len(buffers))
	for i := range buffers {
		b[i] = buffers[i].VKCommandBuffer
	}
	return b
}
