package vkframe

import (
	"github.com/pkg/errors"
)

// frameBackend is the GPU side of the frame loop. Slots index the
// frame-in-flight sync triples; images index the swapchain.
type frameBackend interface {
	WaitFence(slot int) error
	ResetFence(slot int) error
	Acquire(slot int) (uint32, SwapchainStatus, error)
	// Record updates image's uniform slice and re-records its command buffer.
	Record(slot int, image uint32) error
	Submit(slot int, image uint32) error
	Present(slot int, image uint32) (SwapchainStatus, error)
	// Recreate waits for the device to idle and rebuilds every swapchain
	// dependent resource. It returns the new image count.
	Recreate() (int, error)
	ImageCount() int
}

// FrameResult describes what one DrawFrame call did.
type FrameResult struct {
	Slot       int
	ImageIndex uint32
	Presented  bool
	Recreated  bool
	Skipped    bool
}

// FrameOrchestrator drives the per-frame state machine:
// wait fence, acquire, record, submit, present, advance.
type FrameOrchestrator struct {
	backend     frameBackend
	maxInFlight int
	frame       uint64
	resized     bool

	// imagesInFlight[i] is the slot whose submission last used image i, or -1.
	imagesInFlight []int
}

func newFrameOrchestrator(backend frameBackend, maxInFlight int) *FrameOrchestrator {
	o := &FrameOrchestrator{backend: backend, maxInFlight: maxInFlight}
	o.resetImages(backend.ImageCount())
	return o
}

func (o *FrameOrchestrator) resetImages(n int) {
	o.imagesInFlight = make([]int, n)
	for i := range o.imagesInFlight {
		o.imagesInFlight[i] = -1
	}
}

// Slot is the frame-in-flight slot the next DrawFrame uses.
func (o *FrameOrchestrator) Slot() int {
	return int(o.frame % uint64(o.maxInFlight))
}

// Frames is the number of frames presented so far.
func (o *FrameOrchestrator) Frames() uint64 {
	return o.frame
}

// NotifyResized requests recreation after the next present.
func (o *FrameOrchestrator) NotifyResized() {
	o.resized = true
}

// DrawFrame runs one frame. A stale swapchain is handled internally by
// recreating it; every error returned is fatal.
func (o *FrameOrchestrator) DrawFrame() (FrameResult, error) {
	slot := o.Slot()
	res := FrameResult{Slot: slot}

	if err := o.backend.WaitFence(slot); err != nil {
		return res, errors.Wrapf(err, "frame slot %d", slot)
	}

	image, status, err := o.backend.Acquire(slot)
	if err != nil {
		if IsRecoverable(err) {
			return res, o.recreate(&res)
		}
		return res, err
	}
	if status == SwapchainOutOfDate {
		Logger().Debug("acquire out of date, frame aborted", "slot", slot)
		return res, o.recreate(&res)
	}
	res.ImageIndex = image
	if int(image) >= len(o.imagesInFlight) {
		return res, errors.Errorf("acquired image %d of %d", image, len(o.imagesInFlight))
	}

	// The image may still be referenced by a frame submitted from another slot.
	if owner := o.imagesInFlight[image]; owner >= 0 && owner != slot {
		if err := o.backend.WaitFence(owner); err != nil {
			return res, errors.Wrapf(err, "image %d owner slot %d", image, owner)
		}
	}
	o.imagesInFlight[image] = slot

	if err := o.backend.ResetFence(slot); err != nil {
		return res, err
	}
	if err := o.backend.Record(slot, image); err != nil {
		return res, errors.Wrapf(err, "record image %d", image)
	}
	if err := o.backend.Submit(slot, image); err != nil {
		return res, errors.Wrapf(err, "submit image %d", image)
	}

	presented, err := o.backend.Present(slot, image)
	o.frame++
	if err != nil {
		if IsRecoverable(err) {
			return res, o.recreate(&res)
		}
		return res, err
	}
	res.Presented = true
	Logger().Debug("frame presented", "slot", slot, "image", image, "frame", o.frame)

	if status == SwapchainSuboptimal || presented != SwapchainOptimal || o.resized {
		return res, o.recreate(&res)
	}
	return res, nil
}

func (o *FrameOrchestrator) recreate(res *FrameResult) error {
	o.resized = false
	n, err := o.backend.Recreate()
	if err != nil {
		return errors.Wrap(err, "recreate swapchain")
	}
	o.resetImages(n)
	res.Recreated = true
	return nil
}
