package serialgate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageWindow(t *testing.T) {
	cases := []struct {
		name     string
		base     uint64
		size     int
		pageBase uint64
		offset   uintptr
		span     int
	}{
		{"pad base", PadBase, WindowSize, 0x020E0000, 0x1F8, pageSize},
		{"page aligned", 0x020E0000, WindowSize, 0x020E0000, 0, pageSize},
		{"straddles pages", 0x020E0FFC, WindowSize, 0x020E0000, 0xFFC, 2 * pageSize},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			pageBase, offset, span := pageWindow(c.base, c.size)
			require.Equal(t, c.pageBase, pageBase)
			require.Equal(t, c.offset, offset)
			require.Equal(t, c.span, span)
		})
	}
}

func TestWordIndex(t *testing.T) {
	_, offset, span := pageWindow(PadBase, WindowSize)
	require.Equal(t, 126, wordIndex(offset, OffsetTX))
	require.Equal(t, 127, wordIndex(offset, OffsetRX))
	require.Less(t, wordIndex(offset, OffsetRX), span/4)
}

func TestMemoryRegisters(t *testing.T) {
	m := NewMemory(map[uintptr]uint32{OffsetTX: 0x1b0b1})
	require.Equal(t, uint32(0x1b0b1), m.Read32(OffsetTX))
	require.Zero(t, m.Read32(OffsetRX))
	m.Write32(OffsetRX, DisabledPadConfig)
	require.Equal(t, DisabledPadConfig, m.Read32(OffsetRX))
}
