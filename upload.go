package vkframe

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// TransferDevice is what the staged upload protocol needs from a device:
// buffers and images with bound memory and a synchronous one-time submit.
type TransferDevice interface {
	BufferCreator
	CreateBoundImage(extent vk.Extent2D, format vk.Format, usage vk.ImageUsageFlags, props vk.MemoryPropertyFlags) (*BoundImage, error)
	// SubmitOneTime records commands into a one-time buffer, submits it and
	// returns once the queue has drained.
	SubmitOneTime(record func(cmd Commands) error) error
}

// Transfer submits uploads on a queue through a transient command pool.
type Transfer struct {
	Device *Device
	Queue  *Queue
	pool   *CommandPool
}

func (d *Device) CreateTransfer(queue *Queue) (*Transfer, error) {
	pool, err := d.CreateCommandPool(queue.FamilyIndex, true)
	if err != nil {
		return nil, errors.Wrap(err, "transfer pool")
	}
	return &Transfer{Device: d, Queue: queue, pool: pool}, nil
}

func (t *Transfer) CreateBoundBuffer(size uint64, usage vk.BufferUsageFlags, props vk.MemoryPropertyFlags) (*BoundBuffer, error) {
	return t.Device.CreateBoundBuffer(size, usage, props)
}

func (t *Transfer) CreateBoundImage(extent vk.Extent2D, format vk.Format, usage vk.ImageUsageFlags, props vk.MemoryPropertyFlags) (*BoundImage, error) {
	return t.Device.CreateBoundImage(extent, format, usage, props)
}

func (t *Transfer) SubmitOneTime(record func(cmd Commands) error) error {
	cmd, err := t.pool.AllocateOneTime()
	if err != nil {
		return err
	}
	defer t.pool.FreeBuffer(cmd)

	if err := cmd.Begin(); err != nil {
		return err
	}
	if err := record(cmd); err != nil {
		return err
	}
	if err := cmd.End(); err != nil {
		return err
	}
	return t.Queue.SubmitWaitIdle(cmd)
}

func (t *Transfer) Destroy() {
	t.pool.Destroy()
}

// Uploader moves CPU data into device-local buffers and images through a
// host-visible staging buffer. Each upload is submitted and waited on before
// it returns; the staging buffer is destroyed as soon as the copy completes.
type Uploader struct {
	dev TransferDevice
}

func NewUploader(dev TransferDevice) *Uploader {
	return &Uploader{dev: dev}
}

func (u *Uploader) stage(data []byte) (*BoundBuffer, error) {
	staging, err := u.dev.CreateBoundBuffer(uint64(len(data)), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), hostCoherent)
	if err != nil {
		return nil, errors.Wrap(err, "staging buffer")
	}
	if err := staging.Write(0, data); err != nil {
		staging.Destroy()
		return nil, errors.Wrap(err, "fill staging buffer")
	}
	return staging, nil
}

// UploadBuffer copies data into a new device-local buffer with the given
// usage. The buffer can also be read back with ReadBack.
func (u *Uploader) UploadBuffer(data []byte, usage vk.BufferUsageFlags) (*BoundBuffer, error) {
	if len(data) == 0 {
		return nil, errors.New("upload buffer: no data")
	}
	staging, err := u.stage(data)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	size := uint64(len(data))
	usage |= vk.BufferUsageFlags(vk.BufferUsageTransferDstBit | vk.BufferUsageTransferSrcBit)
	dst, err := u.dev.CreateBoundBuffer(size, usage, deviceLocal)
	if err != nil {
		return nil, errors.Wrap(err, "device buffer")
	}

	err = u.dev.SubmitOneTime(func(cmd Commands) error {
		cmd.CopyBuffer(staging, dst, size)
		return nil
	})
	if err != nil {
		dst.Destroy()
		return nil, errors.Wrap(err, "upload buffer")
	}
	Logger().Debug("buffer uploaded", "size", size, "usage", usage)
	return dst, nil
}

// UploadImage copies tightly packed pixels into a new sampled image and
// leaves it in the shader read-only layout.
func (u *Uploader) UploadImage(pixels []byte, width, height int, format vk.Format) (*BoundImage, error) {
	bpp := formatSize(format)
	if bpp == 0 {
		return nil, errors.Errorf("upload image: unsupported format %d", format)
	}
	if width <= 0 || height <= 0 || len(pixels) != width*height*bpp {
		return nil, errors.Errorf("upload image: %d bytes for %dx%d at %d bytes per pixel", len(pixels), width, height, bpp)
	}
	toTransfer, err := LayoutTransition(format, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	if err != nil {
		return nil, err
	}
	toShader, err := LayoutTransition(format, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	if err != nil {
		return nil, err
	}

	staging, err := u.stage(pixels)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	extent := vk.Extent2D{Width: uint32(width), Height: uint32(height)}
	usage := vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit)
	img, err := u.dev.CreateBoundImage(extent, format, usage, deviceLocal)
	if err != nil {
		return nil, errors.Wrap(err, "device image")
	}

	err = u.dev.SubmitOneTime(func(cmd Commands) error {
		cmd.Barrier(toTransfer, img)
		cmd.CopyBufferToImage(staging, img)
		cmd.Barrier(toShader, img)
		return nil
	})
	if err != nil {
		img.Destroy()
		return nil, errors.Wrap(err, "upload image")
	}
	Logger().Debug("image uploaded", "width", width, "height", height, "format", format)
	return img, nil
}

// ReadBack copies the contents of buf into host memory. Device-local
// buffers go through a staging buffer, so buf needs transfer-src usage.
func (u *Uploader) ReadBack(buf *BoundBuffer) ([]byte, error) {
	if buf.HostVisible() {
		return buf.Read(0, buf.Size)
	}
	if buf.Usage&vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit) == 0 {
		return nil, errors.New("read back: buffer lacks transfer source usage")
	}
	staging, err := u.dev.CreateBoundBuffer(buf.Size, vk.BufferUsageFlags(vk.BufferUsageTransferDstBit), hostCoherent)
	if err != nil {
		return nil, errors.Wrap(err, "read back buffer")
	}
	defer staging.Destroy()

	err = u.dev.SubmitOneTime(func(cmd Commands) error {
		cmd.CopyBuffer(buf, staging, buf.Size)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "read back")
	}
	return staging.Read(0, buf.Size)
}

// formatSize returns the bytes per pixel of the formats textures and
// overlay fonts use, or 0.
func formatSize(format vk.Format) int {
	switch format {
	case vk.FormatR8Unorm:
		return 1
	case vk.FormatR8g8b8a8Unorm, vk.FormatR8g8b8a8Srgb, vk.FormatB8g8r8a8Unorm, vk.FormatB8g8r8a8Srgb:
		return 4
	case vk.FormatR16g16b16a16Sfloat:
		return 8
	}
	return 0
}
