package pkg

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func TestFromCode(t *testing.T) {
	tests := []struct {
		name string
		code int
		want error
	}{
		{"success", CodeSuccess, nil},
		{"io", CodeIO, ErrIO},
		{"invalid param", CodeInvalidParam, ErrInvalidParam},
		{"access", CodeAccess, ErrAccess},
		{"no device", CodeNoDevice, ErrNoDevice},
		{"not found", CodeNotFound, ErrNotFound},
		{"busy", CodeBusy, ErrBusy},
		{"timeout", CodeTimeout, ErrTimeout},
		{"overflow", CodeOverflow, ErrOverflow},
		{"pipe", CodePipe, ErrPipe},
		{"interrupted", CodeInterrupted, ErrInterrupted},
		{"no mem", CodeNoMem, ErrNoMem},
		{"not supported", CodeNotSupported, ErrNotSupported},
		{"other", CodeOther, ErrOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromCode(tt.code)
			if tt.want == nil {
				if got != nil {
					t.Errorf("FromCode(%d) = %v, want nil", tt.code, got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("FromCode(%d) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestFromCode_Unrecognized(t *testing.T) {
	// Codes outside the taxonomy fold into ErrOther
	for _, code := range []int{-13, -42, -100, 7} {
		if got := FromCode(code); !errors.Is(got, ErrOther) {
			t.Errorf("FromCode(%d) = %v, want ErrOther", code, got)
		}
	}
}

func TestFromErrno(t *testing.T) {
	tests := []struct {
		name  string
		errno unix.Errno
		want  error
	}{
		{"success", 0, nil},
		{"eio", unix.EIO, ErrIO},
		{"einval", unix.EINVAL, ErrInvalidParam},
		{"eacces", unix.EACCES, ErrAccess},
		{"eperm", unix.EPERM, ErrAccess},
		{"enodev", unix.ENODEV, ErrNoDevice},
		{"enoent", unix.ENOENT, ErrNotFound},
		{"ebusy", unix.EBUSY, ErrBusy},
		{"etimedout", unix.ETIMEDOUT, ErrTimeout},
		{"eoverflow", unix.EOVERFLOW, ErrOverflow},
		{"epipe", unix.EPIPE, ErrPipe},
		{"eintr", unix.EINTR, ErrInterrupted},
		{"enomem", unix.ENOMEM, ErrNoMem},
		{"enosys", unix.ENOSYS, ErrNotSupported},
		{"unrecognized", unix.EXDEV, ErrOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromErrno(tt.errno)
			if tt.want == nil {
				if got != nil {
					t.Errorf("FromErrno(%v) = %v, want nil", tt.errno, got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("FromErrno(%v) = %v, want %v", tt.errno, got, tt.want)
			}
		})
	}
}

func TestSentinelErrors_Distinct(t *testing.T) {
	errs := []error{
		ErrIO,
		ErrInvalidParam,
		ErrAccess,
		ErrNoDevice,
		ErrNotFound,
		ErrBusy,
		ErrTimeout,
		ErrOverflow,
		ErrPipe,
		ErrInterrupted,
		ErrNoMem,
		ErrNotSupported,
		ErrOther,
	}

	for i, a := range errs {
		for j, b := range errs {
			if i != j && errors.Is(a, b) {
				t.Errorf("errors %v and %v should be distinct", a, b)
			}
		}
	}
}
