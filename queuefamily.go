package vkframe

import (
	"fmt"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

type QueueFamilySlice []*QueueFamily

func (ql QueueFamilySlice) Filter(f func(q *QueueFamily) bool) QueueFamilySlice {
	ret := make([]*QueueFamily, 0)
	for _, q := range ql {
		if f(q) {
			ret = append(ret, q)
		}
	}
	return ret
}

func (ql QueueFamilySlice) FilterGraphics() QueueFamilySlice {
	return ql.Filter(func(q *QueueFamily) bool {
		return q.IsGraphics()
	})
}

// Infos snapshots the graphics and present capability of every family.
func (ql QueueFamilySlice) Infos(surface vk.Surface) []QueueFamilyInfo {
	ret := make([]QueueFamilyInfo, len(ql))
	for i, q := range ql {
		ret[i] = QueueFamilyInfo{
			Index:    q.Index,
			Graphics: q.IsGraphics(),
			Present:  q.SupportsPresent(surface),
		}
	}
	return ret
}

type QueueFamily struct {
	Index                   int
	PhysicalDevice          *PhysicalDevice
	VKQueueFamilyProperties vk.QueueFamilyProperties
}

func (q *QueueFamily) IsGraphics() bool {
	return q.VKQueueFamilyProperties.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == vk.QueueFlags(vk.QueueGraphicsBit)
}

func (q *QueueFamily) IsTransfer() bool {
	return q.VKQueueFamilyProperties.QueueFlags&vk.QueueFlags(vk.QueueTransferBit) == vk.QueueFlags(vk.QueueTransferBit)
}

func (q *QueueFamily) SupportsPresent(surface vk.Surface) bool {
	var supportsPresent vk.Bool32
	vk.GetPhysicalDeviceSurfaceSupport(q.PhysicalDevice.VKPhysicalDevice, uint32(q.Index), surface, &supportsPresent)
	return supportsPresent == vk.True
}

func (q *QueueFamily) String() string {
	return fmt.Sprintf("{ Index: %d Graphics: %v Transfer: %v }", q.Index, q.IsGraphics(), q.IsTransfer())
}

// QueueFamilyInfo is the part of a queue family that adapter selection needs.
type QueueFamilyInfo struct {
	Index    int
	Graphics bool
	Present  bool
}

// QueueFamilyIndices names the families the graphics and present queues
// come from. They are equal on most hardware.
type QueueFamilyIndices struct {
	Graphics int
	Present  int
}

// Shared reports whether both queues live in the same family.
func (q QueueFamilyIndices) Shared() bool {
	return q.Graphics == q.Present
}

// Unique returns the distinct family indices, graphics first.
func (q QueueFamilyIndices) Unique() []int {
	if q.Shared() {
		return []int{q.Graphics}
	}
	return []int{q.Graphics, q.Present}
}

// selectQueueFamilies prefers one family that does both graphics and
// present, and otherwise takes the first of each.
func selectQueueFamilies(families []QueueFamilyInfo) (QueueFamilyIndices, error) {
	graphics, present := -1, -1
	for _, f := range families {
		if f.Graphics && f.Present {
			return QueueFamilyIndices{Graphics: f.Index, Present: f.Index}, nil
		}
		if f.Graphics && graphics < 0 {
			graphics = f.Index
		}
		if f.Present && present < 0 {
			present = f.Index
		}
	}
	if graphics < 0 || present < 0 {
		return QueueFamilyIndices{}, errors.Wrap(ErrNoSuitableDevice, "missing graphics or present queue family")
	}
	return QueueFamilyIndices{Graphics: graphics, Present: present}, nil
}
