package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeSource struct {
	t time.Duration
}

func (f *fakeSource) now() time.Duration { return f.t }

func TestUpdateBeforeStartIsNoop(t *testing.T) {
	src := &fakeSource{t: time.Second}
	c := NewWithSource(src.now)

	c.Update()
	assert.Zero(t, c.Elapsed())
}

func TestElapsedAcrossStartUpdateStop(t *testing.T) {
	src := &fakeSource{t: 5 * time.Second}
	c := NewWithSource(src.now)

	c.Start()
	src.t += 16 * time.Millisecond
	c.Update()
	assert.Equal(t, 16*time.Millisecond, c.Elapsed())

	c.Stop()
	src.t += time.Second
	c.Update()
	assert.Equal(t, 16*time.Millisecond, c.Elapsed())

	c.Start()
	assert.Zero(t, c.Elapsed())
}

func TestHighResolutionSourceAdvances(t *testing.T) {
	c := New()
	c.Start()
	time.Sleep(time.Millisecond)
	c.Update()
	assert.Greater(t, c.Elapsed(), time.Duration(0))
}
