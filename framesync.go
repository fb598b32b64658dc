package vkframe

import "time"

// FrameSync is the synchronization triple of one frame-in-flight slot.
// The fence starts signaled so the first wait on a slot returns at once.
type FrameSync struct {
	ImageAvailable *Semaphore
	RenderFinished *Semaphore
	InFlight       *Fence
}

// CreateFrameSync creates n triples, one per frame-in-flight slot.
func (d *Device) CreateFrameSync(n int) ([]*FrameSync, error) {
	cleanup := NewCleanup()
	ret := make([]*FrameSync, n)
	for i := range ret {
		available, err := d.CreateSemaphore()
		if err != nil {
			cleanup.Release()
			return nil, err
		}
		cleanup.Push(available.Destroy)

		finished, err := d.CreateSemaphore()
		if err != nil {
			cleanup.Release()
			return nil, err
		}
		cleanup.Push(finished.Destroy)

		fence, err := d.CreateFence(true)
		if err != nil {
			cleanup.Release()
			return nil, err
		}
		cleanup.Push(fence.Destroy)

		ret[i] = &FrameSync{ImageAvailable: available, RenderFinished: finished, InFlight: fence}
	}
	return ret, nil
}

// Wait blocks on the in-flight fence with no timeout.
func (f *FrameSync) Wait() error {
	return f.InFlight.Wait(time.Duration(-1))
}

func (f *FrameSync) Destroy() {
	f.InFlight.Destroy()
	f.RenderFinished.Destroy()
	f.ImageAvailable.Destroy()
}
