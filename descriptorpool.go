package vkframe

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// PoolPlan is the sizing of one descriptor pool.
type PoolPlan struct {
	MaxSets int
	Sizes   []vk.DescriptorPoolSize
}

// AddPoolSize informs the plan how many of a certain descriptor type the pool will contain
func (p *PoolPlan) AddPoolSize(dtype vk.DescriptorType, count int) *PoolPlan {
	if count <= 0 {
		return p
	}
	p.Sizes = append(p.Sizes, vk.DescriptorPoolSize{
		Type:            dtype,
		DescriptorCount: uint32(count),
	})
	return p
}

// Count returns the number of descriptors of type t the plan provides.
func (p PoolPlan) Count(t vk.DescriptorType) int {
	n := 0
	for _, s := range p.Sizes {
		if s.Type == t {
			n += int(s.DescriptorCount)
		}
	}
	return n
}

// DescriptorPool is essentially a resource manager for descriptor pools provided by Vulkan.
type DescriptorPool struct {
	Device           *Device
	VKDescriptorPool vk.DescriptorPool
	Plan             PoolPlan
}

// CreateDescriptorPool creates a pool from plan. Sets may be freed
// individually.
func (d *Device) CreateDescriptorPool(plan PoolPlan) (*DescriptorPool, error) {
	if plan.MaxSets <= 0 || len(plan.Sizes) == 0 {
		return nil, errors.Errorf("descriptor pool plan is empty: %d sets, %d sizes", plan.MaxSets, len(plan.Sizes))
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(plan.MaxSets),
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		PoolSizeCount: uint32(len(plan.Sizes)),
		PPoolSizes:    plan.Sizes,
	}

	var pool vk.DescriptorPool
	if err := vkError(vk.CreateDescriptorPool(d.VKDevice, &info, nil, &pool), "create descriptor pool"); err != nil {
		return nil, err
	}
	return &DescriptorPool{Device: d, VKDescriptorPool: pool, Plan: plan}, nil
}

// Allocate allocates count descriptor sets of the given layout.
func (p *DescriptorPool) Allocate(layout *DescriptorSetLayout, count int) ([]*DescriptorSet, error) {
	if count <= 0 {
		return nil, nil
	}
	layouts := make([]vk.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = layout.VKDescriptorSetLayout
	}
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.VKDescriptorPool,
		DescriptorSetCount: uint32(count),
		PSetLayouts:        layouts,
	}

	handles := make([]vk.DescriptorSet, count)
	if err := vkError(vk.AllocateDescriptorSets(p.Device.VKDevice, &info, &handles[0]), "allocate descriptor sets "+layout.Spec.Name); err != nil {
		return nil, err
	}

	ret := make([]*DescriptorSet, count)
	for i, h := range handles {
		ret[i] = NewDescriptorSet(p.Device, h)
		ret[i].Pool = p
	}
	return ret, nil
}

func (p *DescriptorPool) Reset() error {
	return vkError(vk.ResetDescriptorPool(p.Device.VKDevice, p.VKDescriptorPool, 0), "reset descriptor pool")
}

func (p *DescriptorPool) Free(ds *DescriptorSet) error {
	set := ds.VKDescriptorSet
	return vkError(vk.FreeDescriptorSets(p.Device.VKDevice, p.VKDescriptorPool, 1, &set), "free descriptor set")
}

func (p *DescriptorPool) Destroy() {
	vk.DestroyDescriptorPool(p.Device.VKDevice, p.VKDescriptorPool, nil)
}
