// Package memory keeps per-tag byte counts so subsystems can attribute the
// scratch memory they hold and leaks show up by owner.
package memory

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/vkngwrapper/renderer/internal/logger"
)

type Tag int

const (
	TagUnknown Tag = iota
	TagArray
	TagDarray
	TagDict
	TagRingQueue
	TagBST
	TagString
	TagApplication
	TagJob
	TagTexture
	TagMaterialInstance
	TagRenderer
	TagGame
	TagTransform
	TagEntity
	TagEntityNode
	TagScene

	tagCount
)

var tagNames = [tagCount]string{
	"UNKNOWN    ",
	"ARRAY      ",
	"DARRAY     ",
	"DICT       ",
	"RING_QUEUE ",
	"BST        ",
	"STRING     ",
	"APPLICATION",
	"JOB        ",
	"TEXTURE    ",
	"MAT_INST   ",
	"RENDERER   ",
	"GAME       ",
	"TRANSFORM  ",
	"ENTITY     ",
	"ENTITY_NODE",
	"SCENE      ",
}

func (t Tag) String() string {
	if t < 0 || t >= tagCount {
		return fmt.Sprintf("Tag(%d)", int(t))
	}
	return strings.TrimSpace(tagNames[t])
}

// Tracker counts bytes allocated under each tag.
type Tracker struct {
	log    *logger.Logger
	total  atomic.Uint64
	tagged [tagCount]atomic.Uint64
}

func NewTracker(log *logger.Logger) *Tracker {
	return &Tracker{log: log}
}

// Allocate records size bytes against tag.
func (t *Tracker) Allocate(size uint64, tag Tag) {
	if t == nil {
		return
	}
	if tag == TagUnknown {
		t.log.Warnf("memory.Allocate called using TagUnknown. Re-class this allocation.")
	}
	tag = t.clamp(tag)
	t.total.Add(size)
	t.tagged[tag].Add(size)
}

// Free releases size bytes previously recorded against tag. Freeing more than
// is outstanding clamps the counter at zero.
func (t *Tracker) Free(size uint64, tag Tag) {
	if t == nil {
		return
	}
	if tag == TagUnknown {
		t.log.Warnf("memory.Free called using TagUnknown. Re-class this allocation.")
	}
	tag = t.clamp(tag)
	if !subtract(&t.tagged[tag], size) {
		t.log.Warnf("memory.Free of %d bytes exceeds outstanding %s usage", size, tag)
	}
	subtract(&t.total, size)
}

func (t *Tracker) clamp(tag Tag) Tag {
	if tag < 0 || tag >= tagCount {
		t.log.Warnf("memory: unknown tag %d, counting as UNKNOWN", int(tag))
		return TagUnknown
	}
	return tag
}

func subtract(counter *atomic.Uint64, size uint64) bool {
	for {
		cur := counter.Load()
		next, ok := cur-size, size <= cur
		if !ok {
			next = 0
		}
		if counter.CompareAndSwap(cur, next) {
			return ok
		}
	}
}

// Usage returns the bytes outstanding under tag.
func (t *Tracker) Usage(tag Tag) uint64 {
	if t == nil || tag < 0 || tag >= tagCount {
		return 0
	}
	return t.tagged[tag].Load()
}

// Total returns the bytes outstanding across all tags.
func (t *Tracker) Total() uint64 {
	if t == nil {
		return 0
	}
	return t.total.Load()
}

// Report renders per-tag usage in the largest fitting binary unit.
func (t *Tracker) Report() string {
	var sb strings.Builder
	sb.WriteString("System memory use (tagged):\n")
	for i := Tag(0); i < tagCount; i++ {
		amount, unit := humanize(t.Usage(i))
		fmt.Fprintf(&sb, "  %s: %.2f%s\n", tagNames[i], amount, unit)
	}
	return sb.String()
}

const (
	gib = 1024 * 1024 * 1024
	mib = 1024 * 1024
	kib = 1024
)

func humanize(bytes uint64) (float64, string) {
	switch {
	case bytes >= gib:
		return float64(bytes) / gib, "GiB"
	case bytes >= mib:
		return float64(bytes) / mib, "MiB"
	case bytes >= kib:
		return float64(bytes) / kib, "KiB"
	}
	return float64(bytes), "B"
}
