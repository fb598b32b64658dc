package vkframe

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

type Image struct {
	Device   *Device
	VKImage  vk.Image
	VKFormat vk.Format
}

func (i *Image) MemoryRequirements() vk.MemoryRequirements {
	var mr vk.MemoryRequirements
	vk.GetImageMemoryRequirements(i.Device.VKDevice, i.VKImage, &mr)
	mr.Deref()
	return mr
}

func (d *Device) CreateImage(extent vk.Extent2D, format vk.Format, tiling vk.ImageTiling, usage vk.ImageUsageFlags) (*Image, error) {
	imageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	var image vk.Image
	if err := vkError(vk.CreateImage(d.VKDevice, &imageInfo, nil, &image), "create image"); err != nil {
		return nil, err
	}
	return &Image{Device: d, VKImage: image, VKFormat: format}, nil
}

func (i *Image) Destroy() {
	vk.DestroyImage(i.Device.VKDevice, i.VKImage, nil)
}

// BoundImage is an optimally tiled 2D image with its own memory.
type BoundImage struct {
	VKImage vk.Image
	Format  vk.Format
	Extent  vk.Extent2D
	Usage   vk.ImageUsageFlags

	release func()
}

// NewBoundImage wraps an existing image. release runs once on Destroy.
func NewBoundImage(image vk.Image, format vk.Format, extent vk.Extent2D, usage vk.ImageUsageFlags, release func()) *BoundImage {
	return &BoundImage{VKImage: image, Format: format, Extent: extent, Usage: usage, release: release}
}

func (b *BoundImage) Destroy() {
	if b.release != nil {
		b.release()
		b.release = nil
	}
}

// CreateBoundImage creates an image and binds freshly allocated memory to it.
func (d *Device) CreateBoundImage(extent vk.Extent2D, format vk.Format, usage vk.ImageUsageFlags, props vk.MemoryPropertyFlags) (*BoundImage, error) {
	if extent.Width == 0 || extent.Height == 0 {
		return nil, errors.Errorf("create bound image: empty extent %dx%d", extent.Width, extent.Height)
	}
	cleanup := NewCleanup()

	img, err := d.CreateImage(extent, format, vk.ImageTilingOptimal, usage)
	if err != nil {
		return nil, err
	}
	cleanup.Push(img.Destroy)

	mr := img.MemoryRequirements()
	mem, err := d.Allocate(uint64(mr.Size), mr.MemoryTypeBits, props)
	if err != nil {
		cleanup.Release()
		return nil, errors.Wrapf(err, "allocate image memory %dx%d", extent.Width, extent.Height)
	}
	cleanup.Push(mem.Destroy)

	if err := vkError(vk.BindImageMemory(d.VKDevice, img.VKImage, mem.VKDeviceMemory, 0), "bind image memory"); err != nil {
		cleanup.Release()
		return nil, err
	}
	return NewBoundImage(img.VKImage, format, extent, usage, cleanup.Transfer()), nil
}

type ImageView struct {
	Device      *Device
	VKImageView vk.ImageView
}

func (i *ImageView) Destroy() {
	if i.Device == nil {
		return
	}
	vk.DestroyImageView(i.Device.VKDevice, i.VKImageView, nil)
}

// CreateImageView creates a 2D view over the whole of image.
func (d *Device) CreateImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (*ImageView, error) {
	createInfo := &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleR,
			G: vk.ComponentSwizzleG,
			B: vk.ComponentSwizzleB,
			A: vk.ComponentSwizzleA,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var view vk.ImageView
	if err := vkError(vk.CreateImageView(d.VKDevice, createInfo, nil, &view), "create image view"); err != nil {
		return nil, err
	}
	return &ImageView{Device: d, VKImageView: view}, nil
}

type Sampler struct {
	Device    *Device
	VKSampler vk.Sampler
}

func (s *Sampler) Destroy() {
	if s.Device == nil {
		return
	}
	vk.DestroySampler(s.Device.VKDevice, s.VKSampler, nil)
}

// CreateSampler creates a linear, repeating sampler without anisotropy.
func (d *Device) CreateSampler() (*Sampler, error) {
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            vk.SamplerAddressModeRepeat,
		AddressModeV:            vk.SamplerAddressModeRepeat,
		AddressModeW:            vk.SamplerAddressModeRepeat,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1.0,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
	}

	var sampler vk.Sampler
	if err := vkError(vk.CreateSampler(d.VKDevice, &info, nil, &sampler), "create sampler"); err != nil {
		return nil, err
	}
	return &Sampler{Device: d, VKSampler: sampler}, nil
}

// isDepthFormat reports whether f carries a depth aspect.
func isDepthFormat(f vk.Format) bool {
	switch f {
	case vk.FormatD16Unorm, vk.FormatD32Sfloat, vk.FormatD16UnormS8Uint, vk.FormatD24UnormS8Uint, vk.FormatD32SfloatS8Uint:
		return true
	}
	return false
}
