package vkframe

import (
	"fmt"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// SwapchainStatus classifies the non-error results of acquire and present.
type SwapchainStatus int

const (
	SwapchainOptimal SwapchainStatus = iota
	// SwapchainSuboptimal still presents correctly but should be recreated.
	SwapchainSuboptimal
	// SwapchainOutOfDate can no longer be used and must be recreated.
	SwapchainOutOfDate
)

func (s SwapchainStatus) String() string {
	switch s {
	case SwapchainOptimal:
		return "optimal"
	case SwapchainSuboptimal:
		return "suboptimal"
	case SwapchainOutOfDate:
		return "out of date"
	}
	return fmt.Sprintf("SwapchainStatus(%d)", int(s))
}

// ExtentProvider is implemented by anything sized like the swapchain.
type ExtentProvider interface {
	Extent() vk.Extent2D
}

// FormatProvider exposes the color format of the presentable images.
type FormatProvider interface {
	ColorFormat() vk.Format
}

// FramebufferSizer reports the current drawable size of a window in pixels.
type FramebufferSizer interface {
	FramebufferSize() (width, height int)
}

var defaultSurfaceFormat = vk.SurfaceFormat{
	Format:     vk.FormatR8g8b8a8Unorm,
	ColorSpace: vk.ColorSpaceSrgbNonlinear,
}

// ChooseBestSurfaceFormat prefers an 8 bit RGBA or BGRA format in the sRGB
// non-linear color space. A lone undefined entry means any format is allowed.
func ChooseBestSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	if len(formats) == 0 {
		return defaultSurfaceFormat
	}
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return defaultSurfaceFormat
	}
	for _, f := range formats {
		if f.ColorSpace != vk.ColorSpaceSrgbNonlinear {
			continue
		}
		switch f.Format {
		case vk.FormatR8g8b8a8Unorm, vk.FormatB8g8r8a8Unorm, vk.FormatR8g8b8a8Srgb, vk.FormatB8g8r8a8Srgb:
			return f
		}
	}
	return formats[0]
}

// ChooseBestPresentationMode picks mailbox when available and FIFO, which
// every implementation supports, otherwise.
func ChooseBestPresentationMode(modes []vk.PresentMode) vk.PresentMode {
	for _, m := range modes {
		if m == vk.PresentModeMailbox {
			return m
		}
	}
	return vk.PresentModeFifo
}

// ChooseSwapExtent returns the surface extent, or the framebuffer size
// clamped to the supported range when the surface leaves it to the window.
func ChooseSwapExtent(caps vk.SurfaceCapabilities, width, height int) vk.Extent2D {
	if caps.CurrentExtent.Width != vk.MaxUint32 {
		return caps.CurrentExtent
	}
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return vk.Extent2D{
		Width:  clampUint32(uint32(width), caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clampUint32(uint32(height), caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// ChooseImageCount asks for one image more than the minimum. A maximum of 0
// means unbounded.
func ChooseImageCount(caps vk.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

// SwapchainSettings is the negotiated configuration of a swapchain.
type SwapchainSettings struct {
	Format      vk.SurfaceFormat
	PresentMode vk.PresentMode
	Extent      vk.Extent2D
	ImageCount  uint32
	Transform   vk.SurfaceTransformFlagBits
}

// ChooseSwapchainSettings runs every selection rule over support.
func ChooseSwapchainSettings(support SurfaceSupport, width, height int) SwapchainSettings {
	return SwapchainSettings{
		Format:      ChooseBestSurfaceFormat(support.Formats),
		PresentMode: ChooseBestPresentationMode(support.PresentModes),
		Extent:      ChooseSwapExtent(support.Capabilities, width, height),
		ImageCount:  ChooseImageCount(support.Capabilities),
		Transform:   support.Capabilities.CurrentTransform,
	}
}

// Swapchain owns the presentable images and one view per image.
type Swapchain struct {
	Device      *Device
	VKSwapchain vk.Swapchain
	Settings    SwapchainSettings
	Images      []vk.Image
	Views       []*ImageView

	surface  vk.Surface
	sizer    FramebufferSizer
	families QueueFamilyIndices
}

// CreateSwapchain negotiates settings with the surface and creates the
// swapchain and its image views.
func (d *Device) CreateSwapchain(surface vk.Surface, sizer FramebufferSizer, families QueueFamilyIndices) (*Swapchain, error) {
	s := &Swapchain{Device: d, surface: surface, sizer: sizer, families: families}
	if err := s.build(vk.NullSwapchain); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Swapchain) build(old vk.Swapchain) error {
	support, err := s.Device.PhysicalDevice.QuerySurfaceSupport(s.surface)
	if err != nil {
		return err
	}
	w, h := s.sizer.FramebufferSize()
	settings := ChooseSwapchainSettings(support, w, h)
	if settings.Extent.Width == 0 || settings.Extent.Height == 0 {
		return errors.Errorf("swapchain: surface has zero extent %dx%d", settings.Extent.Width, settings.Extent.Height)
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.surface,
		MinImageCount:    settings.ImageCount,
		ImageFormat:      settings.Format.Format,
		ImageColorSpace:  settings.Format.ColorSpace,
		ImageExtent:      settings.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     settings.Transform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      settings.PresentMode,
		Clipped:          vk.True,
		OldSwapchain:     old,
		ImageSharingMode: vk.SharingModeExclusive,
	}
	if !s.families.Shared() {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{uint32(s.families.Graphics), uint32(s.families.Present)}
	}

	var swapchain vk.Swapchain
	if err := vkError(vk.CreateSwapchain(s.Device.VKDevice, &createInfo, nil, &swapchain), "create swapchain"); err != nil {
		return err
	}
	cleanup := NewCleanup()
	cleanup.Push(func() { vk.DestroySwapchain(s.Device.VKDevice, swapchain, nil) })

	images, err := swapchainImages(s.Device, swapchain)
	if err != nil {
		cleanup.Release()
		return err
	}
	views := make([]*ImageView, 0, len(images))
	for _, img := range images {
		v, err := s.Device.CreateImageView(img, settings.Format.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			cleanup.Release()
			return err
		}
		views = append(views, v)
		cleanup.Push(v.Destroy)
	}

	s.VKSwapchain = swapchain
	s.Settings = settings
	s.Images = images
	s.Views = views
	Logger().Info("swapchain created",
		"width", settings.Extent.Width, "height", settings.Extent.Height,
		"format", int(settings.Format.Format), "present_mode", int(settings.PresentMode),
		"images", len(images))
	return nil
}

func swapchainImages(d *Device, swapchain vk.Swapchain) ([]vk.Image, error) {
	var count uint32
	if err := vkError(vk.GetSwapchainImages(d.VKDevice, swapchain, &count, nil), "get swapchain images"); err != nil {
		return nil, err
	}
	images := make([]vk.Image, count)
	if err := vkError(vk.GetSwapchainImages(d.VKDevice, swapchain, &count, images), "get swapchain images"); err != nil {
		return nil, err
	}
	return images, nil
}

// Recreate waits for the device to go idle and rebuilds the swapchain from
// the current surface state. Resources built on the old images must be
// released by the caller first.
func (s *Swapchain) Recreate() error {
	if err := s.Device.WaitIdle(); err != nil {
		return err
	}
	old := s.VKSwapchain
	oldViews := s.Views
	if err := s.build(old); err != nil {
		return err
	}
	for _, v := range oldViews {
		v.Destroy()
	}
	vk.DestroySwapchain(s.Device.VKDevice, old, nil)
	return nil
}

// AcquireNextImage requests the next presentable image; signal fires when
// it is ready. An out of date swapchain is reported through the status, not
// as an error.
func (s *Swapchain) AcquireNextImage(timeout uint64, signal *Semaphore) (uint32, SwapchainStatus, error) {
	var idx uint32
	res := vk.AcquireNextImage(s.Device.VKDevice, s.VKSwapchain, timeout, signal.VKSemaphore, vk.NullFence, &idx)
	switch res {
	case vk.Success:
		return idx, SwapchainOptimal, nil
	case vk.Suboptimal:
		return idx, SwapchainSuboptimal, nil
	case vk.ErrorOutOfDate:
		return 0, SwapchainOutOfDate, nil
	case vk.Timeout, vk.NotReady:
		return 0, SwapchainOptimal, errors.Errorf("acquire next image: timed out after %dns", timeout)
	}
	return 0, SwapchainOptimal, vkError(res, "acquire next image")
}

// Present queues imageIndex for display once wait is signaled.
func (s *Swapchain) Present(queue *Queue, wait *Semaphore, imageIndex uint32) (SwapchainStatus, error) {
	res := vk.QueuePresent(queue.VKQueue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{wait.VKSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{s.VKSwapchain},
		PImageIndices:      []uint32{imageIndex},
	})
	switch res {
	case vk.Success:
		return SwapchainOptimal, nil
	case vk.Suboptimal:
		return SwapchainSuboptimal, nil
	case vk.ErrorOutOfDate:
		return SwapchainOutOfDate, nil
	}
	return SwapchainOptimal, vkError(res, "queue present")
}

func (s *Swapchain) Extent() vk.Extent2D {
	return s.Settings.Extent
}

func (s *Swapchain) ColorFormat() vk.Format {
	return s.Settings.Format.Format
}

func (s *Swapchain) ImageCount() int {
	return len(s.Images)
}

func (s *Swapchain) Destroy() {
	for _, v := range s.Views {
		v.Destroy()
	}
	s.Views = nil
	vk.DestroySwapchain(s.Device.VKDevice, s.VKSwapchain, nil)
}
