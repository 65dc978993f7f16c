package pkg

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Engine errors.
var (
	// ErrIO indicates an input/output error.
	ErrIO = errors.New("input/output error")

	// ErrInvalidParam indicates an invalid parameter.
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrAccess indicates access was denied (insufficient permissions).
	ErrAccess = errors.New("access denied")

	// ErrNoDevice indicates the device is not present (it may have been
	// disconnected).
	ErrNoDevice = errors.New("no such device")

	// ErrNotFound indicates the entity was not found.
	ErrNotFound = errors.New("entity not found")

	// ErrBusy indicates the resource is busy.
	ErrBusy = errors.New("resource busy")

	// ErrTimeout indicates the operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrOverflow indicates the device sent more data than requested.
	ErrOverflow = errors.New("overflow")

	// ErrPipe indicates a pipe error (endpoint stall).
	ErrPipe = errors.New("pipe error")

	// ErrInterrupted indicates a system call was interrupted.
	ErrInterrupted = errors.New("system call interrupted")

	// ErrNoMem indicates insufficient memory.
	ErrNoMem = errors.New("insufficient memory")

	// ErrNotSupported indicates the operation is not supported or
	// unimplemented on this platform.
	ErrNotSupported = errors.New("operation not supported")

	// ErrOther indicates an error outside the engine taxonomy.
	ErrOther = errors.New("other error")
)

// Raw engine result codes. A zero code is success; negative codes map to
// the sentinel errors above.
const (
	CodeSuccess      = 0
	CodeIO           = -1
	CodeInvalidParam = -2
	CodeAccess       = -3
	CodeNoDevice     = -4
	CodeNotFound     = -5
	CodeBusy         = -6
	CodeTimeout      = -7
	CodeOverflow     = -8
	CodePipe         = -9
	CodeInterrupted  = -10
	CodeNoMem        = -11
	CodeNotSupported = -12
	CodeOther        = -99
)

// FromCode maps a raw engine result code to an error.
// A success code maps to nil. Codes outside the taxonomy fold into
// [ErrOther], logged at warn level so anomalies stay diagnosable.
func FromCode(code int) error {
	switch code {
	case CodeSuccess:
		return nil
	case CodeIO:
		return ErrIO
	case CodeInvalidParam:
		return ErrInvalidParam
	case CodeAccess:
		return ErrAccess
	case CodeNoDevice:
		return ErrNoDevice
	case CodeNotFound:
		return ErrNotFound
	case CodeBusy:
		return ErrBusy
	case CodeTimeout:
		return ErrTimeout
	case CodeOverflow:
		return ErrOverflow
	case CodePipe:
		return ErrPipe
	case CodeInterrupted:
		return ErrInterrupted
	case CodeNoMem:
		return ErrNoMem
	case CodeNotSupported:
		return ErrNotSupported
	case CodeOther:
		return ErrOther
	default:
		LogWarn(ComponentEngine, "unrecognized engine result code", "code", code)
		return ErrOther
	}
}

// FromErrno maps a system errno from an engine backend to an error.
// Unrecognized errno values fold into [ErrOther].
func FromErrno(errno unix.Errno) error {
	switch errno {
	case 0:
		return nil
	case unix.EIO:
		return ErrIO
	case unix.EINVAL:
		return ErrInvalidParam
	case unix.EACCES, unix.EPERM:
		return ErrAccess
	case unix.ENODEV, unix.ENXIO:
		return ErrNoDevice
	case unix.ENOENT:
		return ErrNotFound
	case unix.EBUSY:
		return ErrBusy
	case unix.ETIMEDOUT, unix.ETIME:
		return ErrTimeout
	case unix.EOVERFLOW:
		return ErrOverflow
	case unix.EPIPE:
		return ErrPipe
	case unix.EINTR:
		return ErrInterrupted
	case unix.ENOMEM:
		return ErrNoMem
	case unix.ENOSYS, unix.EOPNOTSUPP:
		return ErrNotSupported
	default:
		return ErrOther
	}
}
