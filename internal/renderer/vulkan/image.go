package vulkan

import (
	"github.com/cockroachdb/errors"
)

// Attachment is an image with its own backing memory and a view over it.
type Attachment struct {
	Image  Image
	Memory DeviceMemory
	View   ImageView
	Format Format
	Width  uint32
	Height uint32
}

// createAttachment allocates a device-local image of the given format and
// wraps it in a view covering aspect.
func (d *Device) createAttachment(
	width, height uint32,
	format Format,
	usage ImageUsageFlags,
	aspect ImageAspectFlags,
) (*Attachment, error) {
	a := &Attachment{Format: format, Width: width, Height: height}

	image, res := d.Driver.CreateImage(ImageCreateInfo{
		Width:  width,
		Height: height,
		Format: format,
		Tiling: ImageTilingOptimal,
		Usage:  usage,
	})
	if err := check(d.log, res, "vkCreateImage"); err != nil {
		return nil, err
	}
	a.Image = image

	requirements := d.Driver.GetImageMemoryRequirements(image)
	memoryIndex := d.FindMemoryIndex(requirements.MemoryTypeBits, MemoryPropertyDeviceLocal)
	if memoryIndex == -1 {
		d.log.Errorf("Required memory type not found. Image not valid.")
		a.destroy(d.Driver)
		return nil, errors.WithStack(ErrNoMemoryType)
	}

	memory, res := d.Driver.AllocateMemory(requirements.Size, memoryIndex)
	if err := check(d.log, res, "vkAllocateMemory"); err != nil {
		a.destroy(d.Driver)
		return nil, err
	}
	a.Memory = memory

	if err := check(d.log, d.Driver.BindImageMemory(image, memory), "vkBindImageMemory"); err != nil {
		a.destroy(d.Driver)
		return nil, err
	}

	view, res := d.Driver.CreateImageView(ImageViewCreateInfo{
		Image:  image,
		Format: format,
		Aspect: aspect,
	})
	if err := check(d.log, res, "vkCreateImageView"); err != nil {
		a.destroy(d.Driver)
		return nil, err
	}
	a.View = view

	return a, nil
}

func (a *Attachment) destroy(driver DeviceDriver) {
	if a == nil {
		return
	}
	if a.View != 0 {
		driver.DestroyImageView(a.View)
		a.View = 0
	}
	if a.Memory != 0 {
		driver.FreeMemory(a.Memory)
		a.Memory = 0
	}
	if a.Image != 0 {
		driver.DestroyImage(a.Image)
		a.Image = 0
	}
}
