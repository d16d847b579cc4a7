// Package blockfile implements a fixed-size paged random-access file: the
// storage primitive every higher-level artifact in this repository (B+-tree
// nodes, parameter blobs) is layered on.
//
// A block file records its block length once, in a one-block header, at
// create time. Appending allocates the next block and returns its 1-based
// address; ReadBlock and WriteBlock move whole blocks.
package blockfile

import (
	"encoding/binary"
	"os"

	"github.com/gtank/blake2/blake2b"
	"golang.org/x/sys/unix"
)

// headerFields is the size of the fields stored in block 0: a 4-byte block length, a
// 4-byte caller-owned meta word (the B+-tree layer stores its root
// address here), and a blake2b-256 checksum of both fields. The header
// occupies exactly one block regardless of BlockLength.
const headerFields = 4 + 4 + 32

// File is an open block file. Block addresses are 1-based; block 0 is the
// reserved header block.
type File struct {
	f     *os.File
	block int32 // block length in bytes, fixed for the file's lifetime
	n     int32 // number of blocks appended so far (excludes header)
	meta  int32 // caller-owned header word, e.g. a B+-tree root address
}

// Create creates a new block file at path with the given block length,
// failing if one already exists.
func Create(path string, block int32) (*File, error) {
	if block <= int32(headerFields) {
		return nil, &Error{Op: "create", Path: path, Err: ErrBlockTooSmall}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, &Error{Op: "create", Path: path, Err: err}
	}
	bf := &File{f: f, block: block}
	if err := bf.writeHeader(); err != nil {
		f.Close()
		return nil, &Error{Op: "create", Path: path, Err: err}
	}
	return bf, nil
}

// Open opens an existing block file and recovers its block length and
// block count from the header and file size.
func Open(path string, writable bool) (*File, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, &Error{Op: "open", Path: path, Err: err}
	}
	bf := &File{f: f}
	if err := bf.readHeader(); err != nil {
		f.Close()
		return nil, &Error{Op: "open", Path: path, Err: err}
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &Error{Op: "open", Path: path, Err: err}
	}
	bf.n = int32(fi.Size()/int64(bf.block)) - 1
	return bf, nil
}

func (bf *File) writeHeader() error {
	buf := make([]byte, bf.block)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(bf.block))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(bf.meta))
	sum := blake2b.Sum256(buf[0:8])
	copy(buf[8:8+32], sum[:])
	_, err := unix.Pwrite(int(bf.f.Fd()), buf, 0)
	return err
}

func (bf *File) readHeader() error {
	buf := make([]byte, 8)
	if _, err := unix.Pread(int(bf.f.Fd()), buf, 0); err != nil {
		return err
	}
	bf.block = int32(binary.LittleEndian.Uint32(buf[0:4]))
	bf.meta = int32(binary.LittleEndian.Uint32(buf[4:8]))
	return nil
}

// BlockLength returns the fixed block size in bytes.
func (bf *File) BlockLength() int32 { return bf.block }

// NumBlocks returns the number of blocks appended so far, excluding the
// header block.
func (bf *File) NumBlocks() int32 { return bf.n }

// Meta returns the caller-owned header word.
func (bf *File) Meta() int32 { return bf.meta }

// SetMeta persists the caller-owned header word (e.g. a B+-tree root
// block address) into the header block.
func (bf *File) SetMeta(v int32) error {
	bf.meta = v
	return bf.writeHeader()
}

// Append allocates a new block and writes buf (zero-padded or truncated to
// the block length) into it, returning the new block's 1-based address.
func (bf *File) Append(buf []byte) (int32, error) {
	bf.n++
	addr := bf.n
	if err := bf.WriteBlock(addr, buf); err != nil {
		bf.n--
		return 0, err
	}
	return addr, nil
}

// ReadBlock reads the block at addr (1-based) into a freshly allocated
// buffer of BlockLength bytes.
func (bf *File) ReadBlock(addr int32) ([]byte, error) {
	if addr < 1 || addr > bf.n {
		return nil, &Error{Op: "read_block", Err: ErrBadAddress}
	}
	buf := make([]byte, bf.block)
	off := int64(addr) * int64(bf.block)
	if _, err := unix.Pread(int(bf.f.Fd()), buf, off); err != nil {
		return nil, &Error{Op: "read_block", Err: err}
	}
	return buf, nil
}

// WriteBlock writes buf to the block at addr (1-based), zero-padding if
// buf is shorter than the block length.
func (bf *File) WriteBlock(addr int32, buf []byte) error {
	page := make([]byte, bf.block)
	copy(page, buf)
	off := int64(addr) * int64(bf.block)
	if _, err := unix.Pwrite(int(bf.f.Fd()), page, off); err != nil {
		return &Error{Op: "write_block", Err: err}
	}
	return nil
}

// Close releases the underlying file descriptor.
func (bf *File) Close() error {
	return bf.f.Close()
}
