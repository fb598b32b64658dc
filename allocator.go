package vkframe

import (
	"fmt"
)

type Allocation struct {
	Offset uint64
	Size   uint64
}

func (a *Allocation) String() string {
	return fmt.Sprintf("[%d %d]", a.Offset, a.Size)
}

// LinearAllocator hands out aligned ranges of a fixed size block, first fit.
// It does no memory management itself; callers map the ranges onto a buffer.
type LinearAllocator struct {
	Size   uint64
	allocs []*Allocation
}

func makeAlignUp(a uint64, align uint64) uint64 {
	if align <= 1 {
		return a
	}
	m := a % align
	if m == 0 {
		return a
	}
	return (a - m) + align
}

func (p *LinearAllocator) Free(fa *Allocation) {
	for i, a := range p.allocs {
		if a == fa {
			p.allocs = append(p.allocs[:i], p.allocs[i+1:]...)
			return
		}
	}
}

// Allocate returns the first gap of size bytes starting at a multiple of
// align, or nil when the block is full.
func (p *LinearAllocator) Allocate(size uint64, align uint64) *Allocation {
	if len(p.allocs) == 0 {
		if size > p.Size {
			Logger().Debug("allocation does not fit", "size", size, "capacity", p.Size)
			return nil
		}
		na := &Allocation{Offset: 0, Size: size}
		p.allocs = []*Allocation{na}
		return na
	}

	if p.allocs[0].Offset >= size {
		na := &Allocation{Offset: 0, Size: size}
		p.allocs = append([]*Allocation{na}, p.allocs...)
		return na
	}

	for i := 0; i+1 < len(p.allocs); i++ {
		c, n := p.allocs[i], p.allocs[i+1]
		l := makeAlignUp(c.Offset+c.Size, align)
		if n.Offset >= l && n.Offset-l >= size {
			na := &Allocation{Offset: l, Size: size}
			p.allocs = append(p.allocs[:i+1], append([]*Allocation{na}, p.allocs[i+1:]...)...)
			Logger().Debug("allocation placed in gap", "offset", l, "size", size)
			return na
		}
	}

	last := p.allocs[len(p.allocs)-1]
	nl := makeAlignUp(last.Offset+last.Size, align)
	if nl > p.Size || p.Size-nl < size {
		Logger().Debug("allocation does not fit", "size", size, "capacity", p.Size, "used", nl)
		return nil
	}
	na := &Allocation{Offset: nl, Size: size}
	p.allocs = append(p.allocs, na)
	return na
}

func (p *LinearAllocator) String() string {
	return fmt.Sprintf("%v", p.allocs)
}
