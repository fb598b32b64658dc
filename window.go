package vkframe

import (
	"github.com/pkg/errors"
	"github.com/vulkan-go/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// Window is the platform window the renderer presents to.
type Window interface {
	FramebufferSizer
	CreateSurface(instance vk.Instance) (vk.Surface, error)
	RequiredInstanceExtensions() []string
}

// GLFWWindow adapts a glfw window created with the NoAPI client hint.
type GLFWWindow struct {
	*glfw.Window
}

// NewGLFWWindow creates a resizable window without a GL context.
// glfw.Init and vk.Init must have been called.
func NewGLFWWindow(width, height int, title string) (*GLFWWindow, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	w, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create window")
	}
	return &GLFWWindow{Window: w}, nil
}

func (w *GLFWWindow) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surface, err := w.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, err
	}
	return vk.SurfaceFromPointer(surface), nil
}

func (w *GLFWWindow) FramebufferSize() (int, int) {
	return w.GetFramebufferSize()
}

func (w *GLFWWindow) RequiredInstanceExtensions() []string {
	return w.GetRequiredInstanceExtensions()
}

// OnResize calls fn whenever the framebuffer size changes.
func (w *GLFWWindow) OnResize(fn func(width, height int)) {
	w.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		fn(width, height)
	})
}
