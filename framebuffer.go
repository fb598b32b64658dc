package vkframe

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

type Framebuffer struct {
	Device        *Device
	VKFramebuffer vk.Framebuffer
	Extent        vk.Extent2D
}

func (f *Framebuffer) Destroy() {
	vk.DestroyFramebuffer(f.Device.VKDevice, f.VKFramebuffer, nil)
}

// AttachmentImage is a pass-owned attachment shared by every framebuffer.
type AttachmentImage struct {
	Image *BoundImage
	View  *ImageView
}

// RenderTargets holds the images and framebuffers built for one swapchain.
// There is exactly one framebuffer per swapchain image and all of them share
// the swapchain extent.
type RenderTargets struct {
	Attachments  map[string]*AttachmentImage
	Framebuffers []*Framebuffer
	Extent       vk.Extent2D

	cleanup *Cleanup
}

// attachmentUsage returns the image usage for a pass-owned attachment.
func attachmentUsage(graph *PassGraph, a AttachmentSpec) vk.ImageUsageFlags {
	var usage vk.ImageUsageFlags
	switch a.Kind {
	case AttachmentDepth:
		usage = vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)
	default:
		usage = vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	}
	if graph.ReadAsInput(a.Name) {
		usage |= vk.ImageUsageFlags(vk.ImageUsageInputAttachmentBit)
	} else {
		usage |= vk.ImageUsageFlags(vk.ImageUsageTransientAttachmentBit)
	}
	return usage
}

func aspectFor(format vk.Format) vk.ImageAspectFlags {
	switch format {
	case vk.FormatD16UnormS8Uint, vk.FormatD24UnormS8Uint, vk.FormatD32SfloatS8Uint:
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	}
	if isDepthFormat(format) {
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

// framebufferViews orders the views of one framebuffer by attachment index.
func framebufferViews(graph *PassGraph, present vk.ImageView, shared map[string]vk.ImageView) ([]vk.ImageView, error) {
	views := make([]vk.ImageView, len(graph.Attachments))
	for i, a := range graph.Attachments {
		if a.Kind == AttachmentPresent {
			views[i] = present
			continue
		}
		v, ok := shared[a.Name]
		if !ok {
			return nil, errors.Wrapf(ErrResourceNotFound, "no view for attachment %q", a.Name)
		}
		views[i] = v
	}
	return views, nil
}

// CreateRenderTargets creates the pass-owned attachments at the given extent
// and one framebuffer per swapchain view.
func (d *Device) CreateRenderTargets(pass *RenderPass, presentViews []*ImageView, extent ExtentProvider) (*RenderTargets, error) {
	ext := extent.Extent()
	rt := &RenderTargets{
		Attachments: make(map[string]*AttachmentImage),
		Extent:      ext,
		cleanup:     NewCleanup(),
	}

	shared := make(map[string]vk.ImageView)
	for _, a := range pass.Graph.Attachments {
		if a.Kind == AttachmentPresent {
			continue
		}
		img, err := d.CreateBoundImage(ext, a.Format, attachmentUsage(pass.Graph, a), deviceLocal)
		if err != nil {
			rt.Destroy()
			return nil, errors.Wrapf(err, "attachment %q", a.Name)
		}
		rt.cleanup.Push(img.Destroy)

		view, err := d.CreateImageView(img.VKImage, a.Format, aspectFor(a.Format))
		if err != nil {
			rt.Destroy()
			return nil, errors.Wrapf(err, "attachment %q", a.Name)
		}
		rt.cleanup.Push(view.Destroy)

		rt.Attachments[a.Name] = &AttachmentImage{Image: img, View: view}
		shared[a.Name] = view.VKImageView
	}

	for _, pv := range presentViews {
		views, err := framebufferViews(pass.Graph, pv.VKImageView, shared)
		if err != nil {
			rt.Destroy()
			return nil, err
		}
		info := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      pass.VKRenderPass,
			AttachmentCount: uint32(len(views)),
			PAttachments:    views,
			Width:           ext.Width,
			Height:          ext.Height,
			Layers:          1,
		}
		var fb vk.Framebuffer
		if err := vkError(vk.CreateFramebuffer(d.VKDevice, &info, nil, &fb), "create framebuffer"); err != nil {
			rt.Destroy()
			return nil, err
		}
		f := &Framebuffer{Device: d, VKFramebuffer: fb, Extent: ext}
		rt.Framebuffers = append(rt.Framebuffers, f)
		rt.cleanup.Push(f.Destroy)
	}
	return rt, nil
}

// View returns the view of a pass-owned attachment.
func (r *RenderTargets) View(name string) (*ImageView, bool) {
	a, ok := r.Attachments[name]
	if !ok {
		return nil, false
	}
	return a.View, true
}

func (r *RenderTargets) Destroy() {
	r.cleanup.Release()
	r.Framebuffers = nil
	r.Attachments = map[string]*AttachmentImage{}
}
