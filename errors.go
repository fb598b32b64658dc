package vkframe

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

var (
	// ErrSwapchainStale is returned when the swapchain no longer matches the
	// surface. It is the only recoverable error: the frame orchestrator reacts
	// to it by rebuilding every swapchain dependent resource.
	ErrSwapchainStale = errors.New("swapchain is out of date")

	// ErrResourceNotFound is returned when a texture file, shader blob or
	// drawable reference does not exist.
	ErrResourceNotFound = errors.New("resource not found")

	ErrNoSuitableDevice      = errors.New("no suitable physical device")
	ErrNoMemoryType          = errors.New("no matching memory type found")
	ErrUnsupportedTransition = errors.New("unsupported image layout transition")
	ErrNotHostVisible        = errors.New("memory is not host visible")
	ErrInvalidShader         = errors.New("invalid SPIR-V shader blob")
	ErrInvalidPassGraph      = errors.New("invalid render pass graph")
	ErrPushConstantsTooLarge = errors.New("push constant data exceeds device limit")
)

// IsRecoverable reports whether err can be handled by recreating the
// swapchain. Every other error is fatal.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrSwapchainStale)
}

// vkError converts a Vulkan result into an error annotated with the failing
// operation. Out-of-date results map onto ErrSwapchainStale.
func vkError(res vk.Result, op string) error {
	switch res {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate:
		return errors.Wrap(ErrSwapchainStale, op)
	}
	err := vk.Error(res)
	if err == nil {
		return nil
	}
	return errors.Wrap(err, op)
}
