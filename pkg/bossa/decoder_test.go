package bossa

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
)

func bitsOf(v uint32, n int) []gpio.Level {
	levels := make([]gpio.Level, n)
	for i := range levels {
		levels[i] = gpio.Level(v>>uint(i)&1 == 1)
	}
	return levels
}

func frameBits(token uint16, cmd uint8) []gpio.Level {
	return append(bitsOf(uint32(token), AuthBits), bitsOf(uint32(cmd), CommandBits)...)
}

type clock struct {
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Unix(1000, 0)}
}

func (c *clock) tick(d time.Duration) time.Time {
	c.now = c.now.Add(d)
	return c.now
}

func feedAll(d *Decoder, c *clock, levels []gpio.Level) (frames []Frame) {
	for _, l := range levels {
		if f := d.Feed(l, c.tick(time.Millisecond)); f.Complete() {
			frames = append(frames, f)
		}
	}
	return
}

func TestDecodeEraseFrame(t *testing.T) {
	d, c := NewDecoder(), newClock()
	frames := feedAll(d, c, frameBits(AuthToken, CommandErase))
	require.Len(t, frames, 1)
	require.True(t, frames[0].IsErase())
	require.Equal(t, CommandErase, frames[0].Command)
	require.Equal(t, 0, d.Session.Step)
	require.Equal(t, uint8(0), d.Session.Command)
}

func TestDecodeOtherCommands(t *testing.T) {
	for cmd := uint8(0); cmd < CommandErase; cmd++ {
		d, c := NewDecoder(), newClock()
		frames := feedAll(d, c, frameBits(AuthToken, cmd))
		require.Len(t, frames, 1)
		require.False(t, frames[0].IsErase())
		require.Equal(t, cmd, frames[0].Command)
	}
}

func TestDecodeBackToBackFrames(t *testing.T) {
	d, c := NewDecoder(), newClock()
	levels := append(frameBits(AuthToken, 0x3), frameBits(AuthToken, CommandErase)...)
	frames := feedAll(d, c, levels)
	require.Len(t, frames, 2)
	require.Equal(t, uint8(0x3), frames[0].Command)
	require.True(t, frames[1].IsErase())
}

func TestDecodeRejectsOtherTokens(t *testing.T) {
	tokenBits := bitsOf(uint32(AuthToken), AuthBits)
	for v := uint32(0); v <= 0xffff; v++ {
		if uint16(v) == AuthToken {
			continue
		}
		d, c := NewDecoder(), newClock()
		mismatched := false
		for i, l := range bitsOf(v, AuthBits) {
			f := d.Feed(l, c.tick(time.Millisecond))
			require.False(t, f.Complete())
			if !mismatched && l != tokenBits[i] {
				mismatched = true
				if d.Session.Step != 0 {
					t.Fatalf("token %#04x: step %d after mismatch at bit %d", v, d.Session.Step, i)
				}
			}
		}
		if frames := feedAll(d, c, bitsOf(uint32(CommandErase), CommandBits)); len(frames) != 0 {
			t.Fatalf("token %#04x produced a frame", v)
		}
	}
}

func TestDecodeMismatchRestarts(t *testing.T) {
	d, c := NewDecoder(), newClock()
	feedAll(d, c, bitsOf(uint32(AuthToken), 10))
	require.Equal(t, 10, d.Session.Step)
	// bit 10 of the token is 0.
	d.Feed(gpio.High, c.tick(time.Millisecond))
	require.Equal(t, 0, d.Session.Step)
}

func TestDecodeReassemblyTimeout(t *testing.T) {
	d, c := NewDecoder(), newClock()
	levels := frameBits(AuthToken, CommandErase)
	feedAll(d, c, levels[:18])
	require.Equal(t, 18, d.Session.Step)

	// The first bit after the gap starts a fresh attempt: bit 18 of the
	// frame is 1, which does not match token bit 0.
	c.tick(ReassemblyTimeout)
	f := d.Feed(levels[18], c.tick(time.Millisecond))
	require.False(t, f.Complete())
	require.Equal(t, 0, d.Session.Step)
	require.Equal(t, uint8(0), d.Session.Command)

	c.tick(time.Second)
	frames := feedAll(d, c, levels)
	require.Len(t, frames, 1)
	require.True(t, frames[0].IsErase())
}

func TestDecodeGapAtTimeoutBoundaryKeepsProgress(t *testing.T) {
	d, c := NewDecoder(), newClock()
	levels := frameBits(AuthToken, CommandErase)
	feedAll(d, c, levels[:8])
	d.Feed(levels[8], c.tick(ReassemblyTimeout))
	require.Equal(t, 9, d.Session.Step)
	frames := feedAll(d, c, levels[9:])
	require.Len(t, frames, 1)
}

func TestDecodeResyncAfterNoise(t *testing.T) {
	d, c := NewDecoder(), newClock()
	require.Empty(t, feedAll(d, c, bitsOf(0x2d, 7)))
	c.tick(time.Second)
	frames := feedAll(d, c, frameBits(AuthToken, CommandErase))
	require.Len(t, frames, 1)
}

func TestFirstEdgeAfterStart(t *testing.T) {
	d := NewDecoder()
	d.Session.Step = 1
	c := newClock()
	frames := feedAll(d, c, frameBits(AuthToken, CommandErase))
	require.Len(t, frames, 1)
}
