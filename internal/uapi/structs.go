package uapi

import "unsafe"

// Iocb must match kernel struct iocb exactly (64 bytes):
//
//	struct iocb {
//	  __u64 aio_data;       // returned verbatim in io_event.data
//	  __u32 aio_key;        // set by the kernel
//	  __kernel_rwf_t aio_rw_flags;
//	  __u16 aio_lio_opcode;
//	  __s16 aio_reqprio;
//	  __u32 aio_fildes;
//	  __u64 aio_buf;
//	  __u64 aio_nbytes;
//	  __s64 aio_offset;
//	  __u64 aio_reserved2;
//	  __u32 aio_flags;
//	  __u32 aio_resfd;      // eventfd signalled when IOCB_FLAG_RESFD is set
//	};
//
// Key and RwFlags swap places on big endian hosts. Both are always zero here,
// so the layout is the same for every byte order we submit.
type Iocb struct {
	Data      uint64 // opaque tag copied to IOEvent.Data
	Key       uint32 // set by the kernel
	RwFlags   uint32 // RWF_* flags
	Opcode    uint16 // IOCB_CMD_*
	ReqPrio   int16  // request priority
	Fildes    uint32 // target file descriptor
	Buf       uint64 // userspace buffer address
	Nbytes    uint64 // buffer length
	Offset    int64  // file offset
	Reserved2 uint64 // must be zero
	Flags     uint32 // IOCB_FLAG_*
	ResFD     uint32 // eventfd for IOCB_FLAG_RESFD
}

// Compile-time size check - kernel struct is 64 bytes
var _ [IocbSize]byte = [unsafe.Sizeof(Iocb{})]byte{}

// IOEvent must match kernel struct io_event exactly (32 bytes)
type IOEvent struct {
	Data uint64 // the submitting iocb's aio_data
	Obj  uint64 // userspace address of the submitting iocb
	Res  int64  // result: bytes transferred or -errno
	Res2 int64  // secondary result, negative when an error overrides Res
}

// Compile-time size check - kernel struct is 32 bytes
var _ [IOEventSize]byte = [unsafe.Sizeof(IOEvent{})]byte{}

// PrepPread prepares a positioned read of len(buf) bytes at offset into buf.
// The caller must keep buf alive and unmodified until the read completes.
func (cb *Iocb) PrepPread(fd int, buf []byte, offset int64) {
	*cb = Iocb{
		Opcode: IOCB_CMD_PREAD,
		Fildes: uint32(fd),
		Nbytes: uint64(len(buf)),
		Offset: offset,
	}
	if len(buf) > 0 {
		cb.Buf = uint64(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))
	}
}

// SetEventFD makes the kernel signal efd when this iocb completes
func (cb *Iocb) SetEventFD(efd int) {
	cb.Flags |= IOCB_FLAG_RESFD
	cb.ResFD = uint32(efd)
}

// EventFD returns the eventfd to signal and whether one is set
func (cb *Iocb) EventFD() (int, bool) {
	if cb.Flags&IOCB_FLAG_RESFD == 0 {
		return -1, false
	}
	return int(cb.ResFD), true
}

// Result returns the caller-visible result of a completion. A negative Res2
// reports an error that takes precedence over Res; otherwise Res is returned.
func (ev *IOEvent) Result() int64 {
	if ev.Res2 < 0 {
		return ev.Res2
	}
	return ev.Res
}
