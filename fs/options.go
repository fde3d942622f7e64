// Package fs is the file facade of agrippa: openat/read/write/close
// issued through a Task's reactor, with an OpenOptions builder mirroring
// the POSIX open(2) flag and mode surface.
package fs

import "golang.org/x/sys/unix"

// OpenOptions configures a call to Open. The zero value is not usable;
// construct with NewOpenOptions, which seeds the defaults below.
type OpenOptions struct {
	read, write       bool
	truncate, append_ bool
	create, exclusive bool
	closeOnExec       bool
	direct            bool
	noATime           bool
	noFollow          bool
	tempFile          bool

	userRead, userWrite, userExecute    bool
	groupRead, groupWrite, groupExecute bool
	otherRead, otherWrite, otherExecute bool
	setUserID, setGroupID               bool
}

// NewOpenOptions returns an OpenOptions seeded with read-only access,
// close-on-exec, and no-atime enabled, and user read/write permission
// bits set — the same defaults as original_source/src/fs.rs's
// OpenOptions::new.
func NewOpenOptions() *OpenOptions {
	return &OpenOptions{
		read:        true,
		closeOnExec: true,
		noATime:     true,
		userRead:    true,
		userWrite:   true,
	}
}

func (o *OpenOptions) Read(v bool) *OpenOptions      { o.read = v; return o }
func (o *OpenOptions) Write(v bool) *OpenOptions      { o.write = v; return o }
func (o *OpenOptions) Truncate(v bool) *OpenOptions   { o.truncate = v; return o }
func (o *OpenOptions) Append(v bool) *OpenOptions     { o.append_ = v; return o }
func (o *OpenOptions) Create(v bool) *OpenOptions     { o.create = v; return o }
func (o *OpenOptions) Exclusive(v bool) *OpenOptions  { o.exclusive = v; return o }
func (o *OpenOptions) CloseOnExec(v bool) *OpenOptions { o.closeOnExec = v; return o }
func (o *OpenOptions) Direct(v bool) *OpenOptions     { o.direct = v; return o }
func (o *OpenOptions) NoATime(v bool) *OpenOptions    { o.noATime = v; return o }
func (o *OpenOptions) NoFollow(v bool) *OpenOptions   { o.noFollow = v; return o }
func (o *OpenOptions) TempFile(v bool) *OpenOptions   { o.tempFile = v; return o }

func (o *OpenOptions) UserRead(v bool) *OpenOptions     { o.userRead = v; return o }
func (o *OpenOptions) UserWrite(v bool) *OpenOptions    { o.userWrite = v; return o }
func (o *OpenOptions) UserExecute(v bool) *OpenOptions  { o.userExecute = v; return o }
func (o *OpenOptions) GroupRead(v bool) *OpenOptions    { o.groupRead = v; return o }
func (o *OpenOptions) GroupWrite(v bool) *OpenOptions   { o.groupWrite = v; return o }
func (o *OpenOptions) GroupExecute(v bool) *OpenOptions { o.groupExecute = v; return o }
func (o *OpenOptions) OtherRead(v bool) *OpenOptions    { o.otherRead = v; return o }
func (o *OpenOptions) OtherWrite(v bool) *OpenOptions   { o.otherWrite = v; return o }
func (o *OpenOptions) OtherExecute(v bool) *OpenOptions { o.otherExecute = v; return o }
func (o *OpenOptions) SetUserID(v bool) *OpenOptions    { o.setUserID = v; return o }
func (o *OpenOptions) SetGroupID(v bool) *OpenOptions   { o.setGroupID = v; return o }

func (o *OpenOptions) flags() int {
	var flags int
	switch {
	case o.read && o.write:
		flags |= unix.O_RDWR
	case o.write:
		flags |= unix.O_WRONLY
	case o.read:
		flags |= unix.O_RDONLY
	}
	if o.truncate {
		flags |= unix.O_TRUNC
	}
	if o.append_ {
		flags |= unix.O_APPEND
	}
	if o.create {
		flags |= unix.O_CREAT
	}
	if o.exclusive {
		flags |= unix.O_EXCL
	}
	if o.closeOnExec {
		flags |= unix.O_CLOEXEC
	}
	if o.direct {
		flags |= unix.O_DIRECT
	}
	if o.noATime {
		flags |= unix.O_NOATIME
	}
	if o.noFollow {
		flags |= unix.O_NOFOLLOW
	}
	if o.tempFile {
		flags |= unix.O_TMPFILE
	}
	return flags
}

func (o *OpenOptions) mode() uint32 {
	var mode uint32
	if o.userRead {
		mode |= unix.S_IRUSR
	}
	if o.userWrite {
		mode |= unix.S_IWUSR
	}
	if o.userExecute {
		mode |= unix.S_IXUSR
	}
	if o.groupRead {
		mode |= unix.S_IRGRP
	}
	if o.groupWrite {
		mode |= unix.S_IWGRP
	}
	if o.groupExecute {
		mode |= unix.S_IXGRP
	}
	if o.otherRead {
		mode |= unix.S_IROTH
	}
	if o.otherWrite {
		mode |= unix.S_IWOTH
	}
	if o.otherExecute {
		mode |= unix.S_IXOTH
	}
	if o.setUserID {
		mode |= unix.S_ISUID
	}
	if o.setGroupID {
		mode |= unix.S_ISGID
	}
	return mode
}
