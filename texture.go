package vkframe

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeImageFile decodes a png, jpeg, bmp, tiff or webp file into RGBA.
// Images larger than maxSize on either side are scaled down to fit,
// keeping the aspect ratio; maxSize <= 0 disables scaling. A missing file
// yields ErrResourceNotFound.
func DecodeImageFile(path string, maxSize int) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrResourceNotFound, "texture %s", path)
		}
		return nil, errors.Wrapf(err, "open texture %s", path)
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode texture %s", path)
	}
	b := src.Bounds()
	w, h := fitSize(b.Dx(), b.Dy(), maxSize)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
		Logger().Info("texture downscaled", "path", path, "from_w", b.Dx(), "from_h", b.Dy(), "to_w", w, "to_h", h)
	}
	Logger().Debug("texture decoded", "path", path, "format", format, "width", w, "height", h)
	return dst, nil
}

// fitSize scales w x h down so neither side exceeds max.
func fitSize(w, h, max int) (int, int) {
	if max <= 0 || (w <= max && h <= max) {
		return w, h
	}
	if w >= h {
		nh := h * max / w
		if nh < 1 {
			nh = 1
		}
		return max, nh
	}
	nw := w * max / h
	if nw < 1 {
		nw = 1
	}
	return nw, max
}

// TextureDevice creates everything a sampled texture needs.
type TextureDevice interface {
	TransferDevice
	CreateImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (*ImageView, error)
	CreateSampler() (*Sampler, error)
}

func (t *Transfer) CreateImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (*ImageView, error) {
	return t.Device.CreateImageView(image, format, aspect)
}

func (t *Transfer) CreateSampler() (*Sampler, error) {
	return t.Device.CreateSampler()
}

// Texture is a sampled image ready to be bound as a combined image sampler.
type Texture struct {
	Name    string
	Image   *BoundImage
	View    *ImageView
	Sampler *Sampler
}

func (t *Texture) Width() int {
	return int(t.Image.Extent.Width)
}

func (t *Texture) Height() int {
	return int(t.Image.Extent.Height)
}

func (t *Texture) Destroy() {
	t.Sampler.Destroy()
	t.View.Destroy()
	t.Image.Destroy()
}

// TextureLoader decodes image files and uploads them as RGBA8 textures.
// Textures are cached by path and owned by the loader.
type TextureLoader struct {
	dev      TextureDevice
	uploader *Uploader
	maxSize  int
	textures map[string]*Texture
	order    []string
}

func NewTextureLoader(dev TextureDevice, maxSize int) *TextureLoader {
	return &TextureLoader{
		dev:      dev,
		uploader: NewUploader(dev),
		maxSize:  maxSize,
		textures: make(map[string]*Texture),
	}
}

// Load returns the texture for path, decoding and uploading it on first
// use. The file is decoded before any GPU object is created.
func (l *TextureLoader) Load(path string) (*Texture, error) {
	if t, ok := l.textures[path]; ok {
		return t, nil
	}
	img, err := DecodeImageFile(path, l.maxSize)
	if err != nil {
		return nil, err
	}
	t, err := l.FromImage(path, img)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// FromImage uploads an already decoded image under name.
func (l *TextureLoader) FromImage(name string, img *image.RGBA) (*Texture, error) {
	if t, ok := l.textures[name]; ok {
		return t, nil
	}
	b := img.Bounds()
	pixels := img.Pix
	if img.Stride != b.Dx()*4 {
		pixels = packRGBA(img)
	}

	cleanup := NewCleanup()
	bi, err := l.uploader.UploadImage(pixels, b.Dx(), b.Dy(), vk.FormatR8g8b8a8Unorm)
	if err != nil {
		return nil, errors.Wrapf(err, "texture %s", name)
	}
	cleanup.Push(bi.Destroy)

	view, err := l.dev.CreateImageView(bi.VKImage, vk.FormatR8g8b8a8Unorm, vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		cleanup.Release()
		return nil, errors.Wrapf(err, "texture %s", name)
	}
	cleanup.Push(view.Destroy)

	sampler, err := l.dev.CreateSampler()
	if err != nil {
		cleanup.Release()
		return nil, errors.Wrapf(err, "texture %s", name)
	}

	t := &Texture{Name: name, Image: bi, View: view, Sampler: sampler}
	l.textures[name] = t
	l.order = append(l.order, name)
	return t, nil
}

// Get returns a previously loaded texture.
func (l *TextureLoader) Get(name string) (*Texture, error) {
	t, ok := l.textures[name]
	if !ok {
		return nil, errors.Wrapf(ErrResourceNotFound, "texture %s", name)
	}
	return t, nil
}

func (l *TextureLoader) Len() int {
	return len(l.textures)
}

// Destroy releases every texture in reverse load order.
func (l *TextureLoader) Destroy() {
	for i := len(l.order) - 1; i >= 0; i-- {
		l.textures[l.order[i]].Destroy()
	}
	l.textures = make(map[string]*Texture)
	l.order = nil
}

func packRGBA(img *image.RGBA) []byte {
	b := img.Bounds()
	row := b.Dx() * 4
	out := make([]byte, 0, row*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		off := y * img.Stride
		out = append(out, img.Pix[off:off+row]...)
	}
	return out
}
