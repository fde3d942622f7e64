// Package sys provides low-level io_uring syscall wrappers and types.
package sys

// Syscall numbers for io_uring (x86_64)
const (
	SYS_IO_URING_SETUP    = 425
	SYS_IO_URING_ENTER    = 426
	SYS_IO_URING_REGISTER = 427
)

// io_uring_op - Operation codes for SQE. Kept as the full kernel-ABI
// enumeration (the numeric value of each opcode is load-bearing) even
// though this module only issues a subset of them.
type Op uint8

const (
	IORING_OP_NOP Op = iota
	IORING_OP_READV
	IORING_OP_WRITEV
	IORING_OP_FSYNC
	IORING_OP_READ_FIXED
	IORING_OP_WRITE_FIXED
	IORING_OP_POLL_ADD
	IORING_OP_POLL_REMOVE
	IORING_OP_SYNC_FILE_RANGE
	IORING_OP_SENDMSG
	IORING_OP_RECVMSG
	IORING_OP_TIMEOUT
	IORING_OP_TIMEOUT_REMOVE
	IORING_OP_ACCEPT
	IORING_OP_ASYNC_CANCEL
	IORING_OP_LINK_TIMEOUT
	IORING_OP_CONNECT
	IORING_OP_FALLOCATE
	IORING_OP_OPENAT
	IORING_OP_CLOSE
	IORING_OP_FILES_UPDATE
	IORING_OP_STATX
	IORING_OP_READ
	IORING_OP_WRITE
	IORING_OP_FADVISE
	IORING_OP_MADVISE
	IORING_OP_SEND
	IORING_OP_RECV
	IORING_OP_OPENAT2
	IORING_OP_EPOLL_CTL
	IORING_OP_SPLICE
	IORING_OP_PROVIDE_BUFFERS
	IORING_OP_REMOVE_BUFFERS
	IORING_OP_TEE
	IORING_OP_SHUTDOWN
	IORING_OP_RENAMEAT
	IORING_OP_UNLINKAT
	IORING_OP_MKDIRAT
	IORING_OP_SYMLINKAT
	IORING_OP_LINKAT
	IORING_OP_MSG_RING
	IORING_OP_FSETXATTR
	IORING_OP_SETXATTR
	IORING_OP_FGETXATTR
	IORING_OP_GETXATTR
	IORING_OP_SOCKET
	IORING_OP_URING_CMD
	IORING_OP_SEND_ZC
	IORING_OP_SENDMSG_ZC
	IORING_OP_READ_MULTISHOT
	IORING_OP_WAITID
	IORING_OP_FUTEX_WAIT
	IORING_OP_FUTEX_WAKE
	IORING_OP_FUTEX_WAITV
	IORING_OP_FIXED_FD_INSTALL
	IORING_OP_FTRUNCATE
	IORING_OP_BIND
	IORING_OP_LISTEN

	IORING_OP_LAST // Sentinel for bounds checking
)

// SQE flags (IOSQE_*)
const (
	IOSQE_FIXED_FILE       uint8 = 1 << 0 // fd is index into registered files
	IOSQE_IO_DRAIN         uint8 = 1 << 1 // Issue after all previous SQEs complete
	IOSQE_IO_LINK          uint8 = 1 << 2 // Link to next SQE
	IOSQE_IO_HARDLINK      uint8 = 1 << 3 // Hard link - chain continues on error
	IOSQE_ASYNC            uint8 = 1 << 4 // Always use async execution
	IOSQE_BUFFER_SELECT    uint8 = 1 << 5 // Select buffer from buf_group
	IOSQE_CQE_SKIP_SUCCESS uint8 = 1 << 6 // Don't generate CQE if successful
)

// Setup flags (IORING_SETUP_*)
const (
	IORING_SETUP_IOPOLL        uint32 = 1 << 0  // Use I/O polling
	IORING_SETUP_SQPOLL        uint32 = 1 << 1  // Kernel polls SQ
	IORING_SETUP_SQ_AFF        uint32 = 1 << 2  // Pin SQPOLL thread to CPU
	IORING_SETUP_CQSIZE        uint32 = 1 << 3  // App provides CQ size
	IORING_SETUP_SINGLE_ISSUER uint32 = 1 << 12 // Single task submits
)

// Feature flags (IORING_FEAT_*)
const (
	IORING_FEAT_SINGLE_MMAP uint32 = 1 << 0 // SQ/CQ share mmap
)

// Enter flags (IORING_ENTER_*)
const (
	IORING_ENTER_GETEVENTS uint32 = 1 << 0 // Wait for events
	IORING_ENTER_SQ_WAKEUP uint32 = 1 << 1 // Wake SQPOLL thread
)

// SQ ring flags
const (
	IORING_SQ_NEED_WAKEUP uint32 = 1 << 0 // SQPOLL needs wakeup
)

// Cancel flags
const (
	IORING_ASYNC_CANCEL_ALL uint32 = 1 << 0
	IORING_ASYNC_CANCEL_ANY uint32 = 1 << 2
)

// mmap offsets for the ring buffers
const (
	IORING_OFF_SQ_RING uint64 = 0
	IORING_OFF_CQ_RING uint64 = 0x8000000
	IORING_OFF_SQES    uint64 = 0x10000000
)
