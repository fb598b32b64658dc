/*
Package vkframe is the frame rendering core of a deferred Vulkan renderer. It takes a window,
brings up an instance and device on it, and then draws textured meshes through a two subpass
render pass: a geometry subpass writes albedo, normals and depth into a G-buffer, and a
composition subpass reads the G-buffer back as input attachments and lights it into the
swapchain image.

Vulkan leaves nearly everything to the application: where memory lives, when an image changes
layout, when the CPU may touch a buffer the GPU is reading. This package makes those decisions
once, for one shape of renderer, and keeps them in a few places.

Bootstrap

NewDeviceContext creates the instance (optionally with validation layers), the surface, picks
the physical device with the best score that has graphics and present queues, swapchain support
and a usable surface format, and creates the logical device. Everything else is created from
the resulting Device.

Frames in flight

A Renderer keeps Config.MaxFramesInFlight synchronization triples: an image available semaphore,
a render finished semaphore and a fence. Each call to DrawFrame uses the next triple:

	wait fence -> acquire image -> record -> submit -> present

Command buffers are re-recorded every frame, one per swapchain image. Because the swapchain may
hand out more images than there are triples, the FrameOrchestrator remembers which triple last
submitted each image and waits for that fence too before the image's command buffer is reset.

Swapchain recreation

An out of date acquire aborts the frame; a suboptimal acquire, a non optimal present or a window
resize recreates after the frame is presented. Recreation waits for the device to go idle and
rebuilds, bottom-up, everything sized by the swapchain: the render pass, the G-buffer and
framebuffers, the pipelines (through a cache that survives), the per-image uniform slices and
descriptor sets, and the command buffers. Meshes and textures are left alone.

Uploads

Device local buffers and images are filled through host visible staging buffers and a one time
command buffer on a transient pool; the queue is waited on before the staging memory is freed.
Images are moved to TRANSFER_DST before the copy and to SHADER_READ_ONLY after it.

Descriptors

Set 0 of the geometry pipeline is the per-image camera uniform, set 1 the texture. The
composition pipeline has one set holding the G-buffer input attachments. Texture sets come from
a pool that lives as long as the Renderer; frame and input sets are reallocated on recreation.

Errors

Errors carry the failing operation. A stale swapchain is the only recoverable condition (see
IsRecoverable); the orchestrator handles it itself, so any error returned by DrawFrame is fatal.

Logging

The package logs through log/slog. Nothing is logged until SetLogger is called.
*/
package vkframe
