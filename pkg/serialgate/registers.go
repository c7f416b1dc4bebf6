package serialgate

import (
	"fmt"
	"sync"

	"periph.io/x/host/v3/pmem"
)

const pageSize = 4096

// PhysRegisters maps a window of physical memory through /dev/mem.
type PhysRegisters struct {
	view   *pmem.View
	words  []uint32
	offset uintptr
}

// pageWindow returns the page aligned mapping covering size bytes at base,
// and the byte offset of base within it.
func pageWindow(base uint64, size int) (pageBase uint64, offset uintptr, span int) {
	pageBase = base &^ (pageSize - 1)
	offset = uintptr(base - pageBase)
	span = (int(offset) + size + pageSize - 1) &^ (pageSize - 1)
	return
}

// wordIndex is the index of the 32-bit word at off from base.
func wordIndex(offset, off uintptr) int {
	return int((offset + off) / 4)
}

// MapPhys maps size bytes at physical address base. The mapping is page
// aligned internally so base does not need to be.
func MapPhys(base uint64, size int) (*PhysRegisters, error) {
	pageBase, offset, span := pageWindow(base, size)
	view, err := pmem.Map(pageBase, span)
	if err != nil {
		return nil, fmt.Errorf("map pad registers at %#x: %w", base, err)
	}
	return &PhysRegisters{view: view, words: view.Uint32(), offset: offset}, nil
}

// Read32 implements Registers.
func (r *PhysRegisters) Read32(off uintptr) uint32 {
	return r.words[wordIndex(r.offset, off)]
}

// Write32 implements Registers.
func (r *PhysRegisters) Write32(off uintptr, val uint32) {
	r.words[wordIndex(r.offset, off)] = val
}

// Close unmaps the window.
func (r *PhysRegisters) Close() error {
	return r.view.Close()
}

// Memory is an in-process register window.
type Memory struct {
	words map[uintptr]uint32
	lock  sync.Mutex
}

// NewMemory creates a Memory with initial register values keyed by offset.
func NewMemory(initial map[uintptr]uint32) *Memory {
	m := &Memory{words: make(map[uintptr]uint32)}
	for off, val := range initial {
		m.words[off] = val
	}
	return m
}

// Read32 implements Registers.
func (m *Memory) Read32(off uintptr) uint32 {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.words[off]
}

// Write32 implements Registers.
func (m *Memory) Write32(off uintptr, val uint32) {
	m.lock.Lock()
	m.words[off] = val
	m.lock.Unlock()
}
