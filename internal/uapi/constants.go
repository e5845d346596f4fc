// Package uapi provides Linux kernel UAPI definitions for native AIO
package uapi

// I/O Commands (aio_lio_opcode)
const (
	IOCB_CMD_PREAD   = 0
	IOCB_CMD_PWRITE  = 1
	IOCB_CMD_FSYNC   = 2
	IOCB_CMD_FDSYNC  = 3
	IOCB_CMD_POLL    = 5
	IOCB_CMD_NOOP    = 6
	IOCB_CMD_PREADV  = 7
	IOCB_CMD_PWRITEV = 8
)

// iocb flags (aio_flags)
const (
	// IOCB_FLAG_RESFD asks the kernel to signal aio_resfd (an eventfd) on completion
	IOCB_FLAG_RESFD = 1 << 0
	// IOCB_FLAG_IOPRIO makes the kernel honour aio_reqprio
	IOCB_FLAG_IOPRIO = 1 << 1
)

// Structure sizes from include/uapi/linux/aio_abi.h
const (
	IocbSize    = 64
	IOEventSize = 32
)

// OpName returns a short name for an iocb opcode, used in logs
func OpName(op uint16) string {
	switch op {
	case IOCB_CMD_PREAD:
		return "PREAD"
	case IOCB_CMD_PWRITE:
		return "PWRITE"
	case IOCB_CMD_FSYNC:
		return "FSYNC"
	case IOCB_CMD_FDSYNC:
		return "FDSYNC"
	case IOCB_CMD_POLL:
		return "POLL"
	case IOCB_CMD_NOOP:
		return "NOOP"
	case IOCB_CMD_PREADV:
		return "PREADV"
	case IOCB_CMD_PWRITEV:
		return "PWRITEV"
	default:
		return "UNKNOWN"
	}
}
