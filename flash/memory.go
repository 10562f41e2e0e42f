// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package flash

// Memory is an in-memory Device, standing in for a real AT45/NOR chip driver
// (kept abstract per spec — flash chip drivers are an external collaborator).
// Newly constructed and newly-erased bytes read back as 0xFF, matching AT45
// erase semantics.
type Memory struct {
	buf       []byte
	readSize  int
	eraseSize int
}

// NewMemory builds a Memory device of the given total size, with the given
// read and erase granularities. The whole device starts erased (0xFF).
func NewMemory(size, readSize, eraseSize int) *Memory {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0xFF
	}
	return &Memory{buf: buf, readSize: readSize, eraseSize: eraseSize}
}

func (m *Memory) ReadSize() int  { return m.readSize }
func (m *Memory) EraseSize() int { return m.eraseSize }
func (m *Memory) Size() int64    { return int64(len(m.buf)) }

func (m *Memory) ReadAt(p []byte, addr int64) error {
	if addr < 0 || addr+int64(len(p)) > int64(len(m.buf)) {
		return ErrOutOfRange
	}
	copy(p, m.buf[addr:addr+int64(len(p))])
	return nil
}

func (m *Memory) ProgramAt(p []byte, addr int64) error {
	if addr < 0 || addr+int64(len(p)) > int64(len(m.buf)) {
		return ErrOutOfRange
	}
	copy(m.buf[addr:addr+int64(len(p))], p)
	return nil
}

func (m *Memory) EraseAt(addr int64, length int64) error {
	if addr%int64(m.eraseSize) != 0 || length%int64(m.eraseSize) != 0 {
		return ErrUnalignedErase
	}
	if addr < 0 || addr+length > int64(len(m.buf)) {
		return ErrOutOfRange
	}
	for i := addr; i < addr+length; i++ {
		m.buf[i] = 0xFF
	}
	return nil
}
