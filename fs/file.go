package fs

import (
	"golang.org/x/sys/unix"

	"github.com/jakobt/agrippa/reactor"
)

// File is an open file, owning its descriptor through the reactor's FDR.
type File struct {
	fd *reactor.FD
}

// Open opens path with the given options, issuing the openat through t's
// reactor.
func Open(t *reactor.Task, path string, o *OpenOptions) (*File, error) {
	cpath, err := unix.BytePtrFromString(path)
	if err != nil {
		return nil, reactor.Boxed(err)
	}
	fd, err := t.OpenAt(unix.AT_FDCWD, cpath, o.flags(), o.mode())
	if err != nil {
		return nil, err
	}
	return &File{fd: fd}, nil
}

// Create opens path for writing, creating and truncating it if it
// exists, matching original_source/src/fs.rs's File::create.
func Create(t *reactor.Task, path string) (*File, error) {
	return Open(t, path, NewOpenOptions().Create(true).Write(true).Truncate(true))
}

// Close consumes the File, releasing its descriptor through the ring.
func (f *File) Close(t *reactor.Task) error {
	return t.Close(f.fd)
}

// Read reads up to len(buf) bytes at offset.
func (f *File) Read(t *reactor.Task, buf []byte, offset uint64) (int, error) {
	return t.Read(f.fd.Int(), buf, offset)
}

// Write writes all of buf at offset, retrying short writes. Returns
// reactor.ErrEOF if the kernel reports a zero-byte transfer before all of
// buf is written, matching original_source/src/fs.rs's File::write.
func (f *File) Write(t *reactor.Task, buf []byte, offset uint64) error {
	start := 0
	for start != len(buf) {
		n, err := t.Write(f.fd.Int(), buf[start:], offset+uint64(start))
		if err != nil {
			return err
		}
		start += n
	}
	return nil
}

// ReadAll reads the file to the end, starting with a 128KiB buffer and
// doubling it whenever a read fills it completely, matching
// original_source/src/fs.rs's File::read_all.
func (f *File) ReadAll(t *reactor.Task) ([]byte, error) {
	data := make([]byte, 128*1024)
	start := 0
	for {
		n, err := t.Read(f.fd.Int(), data[start:], uint64(start))
		if err == reactor.ErrEOF {
			return data[:start], nil
		}
		if err != nil {
			return nil, err
		}
		start += n
		if start != len(data) {
			return data[:start], nil
		}
		grown := make([]byte, len(data)*2)
		copy(grown, data)
		data = grown
	}
}
