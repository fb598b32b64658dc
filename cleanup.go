package vkframe

// Cleanup is a LIFO stack of release functions. Constructors that acquire
// several Vulkan objects push a release for each one as it is created and
// call Release if a later step fails, so partially built objects never leak.
type Cleanup struct {
	releases []func()
}

// NewCleanup returns an empty release stack.
func NewCleanup() *Cleanup {
	return &Cleanup{}
}

// Push registers a release function. Nil functions are ignored.
func (c *Cleanup) Push(release func()) {
	if release == nil {
		return
	}
	c.releases = append(c.releases, release)
}

// Len returns the number of pending releases.
func (c *Cleanup) Len() int {
	return len(c.releases)
}

// Release runs all pending releases in reverse order and empties the stack.
// Calling it again is a no-op.
func (c *Cleanup) Release() {
	for i := len(c.releases) - 1; i >= 0; i-- {
		c.releases[i]()
	}
	c.releases = nil
}

// Transfer moves the pending releases into a single function and empties c.
// It is used once construction succeeds and ownership passes to the result.
func (c *Cleanup) Transfer() func() {
	releases := c.releases
	c.releases = nil
	return func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
}
