package vkframe

import (
	"math"
	"time"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

type Fence struct {
	Device  *Device
	VKFence vk.Fence
}

// CreateFence creates a fence, optionally already signaled so that the
// first wait on a fresh frame slot returns immediately.
func (d *Device) CreateFence(signaled bool) (*Fence, error) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := vkError(vk.CreateFence(d.VKDevice, &info, nil, &fence), "create fence"); err != nil {
		return nil, err
	}
	return &Fence{Device: d, VKFence: fence}, nil
}

// Signaled polls the fence without blocking.
func (f *Fence) Signaled() (bool, error) {
	res := vk.GetFenceStatus(f.Device.VKDevice, f.VKFence)
	switch res {
	case vk.Success:
		return true, nil
	case vk.NotReady:
		return false, nil
	}
	return false, vkError(res, "get fence status")
}

// Wait blocks until the fence signals. A negative timeout waits forever.
func (f *Fence) Wait(timeout time.Duration) error {
	return f.Device.WaitForFences(true, timeout, f)
}

func (f *Fence) Reset() error {
	return vkError(vk.ResetFences(f.Device.VKDevice, 1, []vk.Fence{f.VKFence}), "reset fence")
}

func (d *Device) WaitForFences(waitForAll bool, timeout time.Duration, fences ...*Fence) error {
	f := make([]vk.Fence, len(fences))
	for i := range fences {
		f[i] = fences[i].VKFence
	}

	var wait vk.Bool32 = vk.False
	if waitForAll {
		wait = vk.True
	}

	ns := uint64(math.MaxUint64)
	if timeout >= 0 {
		ns = uint64(timeout.Nanoseconds())
	}
	res := vk.WaitForFences(d.VKDevice, uint32(len(fences)), f, wait, ns)
	if res == vk.Timeout {
		return errors.Errorf("wait for fences: timed out after %s", timeout)
	}
	return vkError(res, "wait for fences")
}

func (f *Fence) Destroy() {
	vk.DestroyFence(f.Device.VKDevice, f.VKFence, nil)
}
