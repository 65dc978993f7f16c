package host

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/ardnew/usbasync/host/hal"
	"github.com/ardnew/usbasync/host/hal/mem"
	"github.com/ardnew/usbasync/pkg"
)

func newTestHandle() *Handle {
	return NewHandle(mem.New())
}

func TestBulk_Fields(t *testing.T) {
	h := newTestHandle()

	tr, err := Bulk(h, 0x81, make([]byte, 64), 1000*time.Millisecond)
	if err != nil {
		t.Fatalf("Bulk failed: %v", err)
	}
	defer tr.Close()

	if tr.Endpoint() != 0x81 {
		t.Errorf("Endpoint() = 0x%02X, want 0x81", tr.Endpoint())
	}
	if tr.Timeout() != time.Second {
		t.Errorf("Timeout() = %v, want 1s", tr.Timeout())
	}
	if len(tr.Buffer()) != 64 {
		t.Errorf("len(Buffer()) = %d, want 64", len(tr.Buffer()))
	}
	if tr.Status() != TransferUnknown {
		t.Errorf("Status() = %v, want unknown before submission", tr.Status())
	}
}

func TestBulk_BufferCapacityClipped(t *testing.T) {
	h := newTestHandle()

	buf := make([]byte, 16, 256)
	tr, err := Bulk(h, 0x02, buf, time.Second)
	if err != nil {
		t.Fatalf("Bulk failed: %v", err)
	}
	defer tr.Close()

	got := tr.Buffer()
	if len(got) != 16 {
		t.Errorf("len = %d, want 16", len(got))
	}
	if cap(got) != 16 {
		t.Errorf("cap = %d, want 16 (slack capacity must not reach the engine)", cap(got))
	}
}

func TestInterrupt_Type(t *testing.T) {
	h := newTestHandle()

	tr, err := Interrupt(h, 0x83, make([]byte, 8), 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Interrupt failed: %v", err)
	}
	defer tr.Close()

	if tr.td.Type != hal.TransferInterrupt {
		t.Errorf("descriptor type = %v, want interrupt", tr.td.Type)
	}
}

func TestControl_SetupHeader(t *testing.T) {
	h := newTestHandle()

	// GET_DESCRIPTOR(DEVICE): requestType=0x80 request=0x06 value=0x0100
	// index=0 length=18
	tr, err := Control(h, 0x00, make([]byte, 18), 0x80, 0x06, 0x0100, 0, time.Second)
	if err != nil {
		t.Fatalf("Control failed: %v", err)
	}
	defer tr.Close()

	want := []byte{0x80, 0x06, 0x00, 0x01, 0x00, 0x00, 0x12, 0x00}
	buf := tr.Buffer()
	if len(buf) != hal.SetupPacketSize+18 {
		t.Fatalf("len(Buffer()) = %d, want %d", len(buf), hal.SetupPacketSize+18)
	}
	if !bytes.Equal(buf[:hal.SetupPacketSize], want) {
		t.Errorf("setup header = % X, want % X", buf[:hal.SetupPacketSize], want)
	}
}

func TestControl_PayloadCopied(t *testing.T) {
	h := newTestHandle()

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	tr, err := Control(h, 0x00, payload, 0x40, 0x01, 0, 0, time.Second)
	if err != nil {
		t.Fatalf("Control failed: %v", err)
	}
	defer tr.Close()

	if !bytes.Equal(tr.Buffer()[hal.SetupPacketSize:], payload) {
		t.Errorf("payload = % X, want % X", tr.Buffer()[hal.SetupPacketSize:], payload)
	}
}

func TestSetBuffer(t *testing.T) {
	h := newTestHandle()

	tr, err := Bulk(h, 0x81, make([]byte, 8), time.Second)
	if err != nil {
		t.Fatalf("Bulk failed: %v", err)
	}
	defer tr.Close()

	// Simulate a stale result from a previous completion
	tr.td.ActualLength = 5

	next := []byte{1, 2, 3}
	tr.SetBuffer(next)

	if !bytes.Equal(tr.Buffer(), next) {
		t.Errorf("Buffer() = % X, want % X", tr.Buffer(), next)
	}
	if len(tr.td.Buffer) != 3 {
		t.Errorf("descriptor length = %d, want 3", len(tr.td.Buffer))
	}
	if tr.td.ActualLength != 0 {
		t.Errorf("ActualLength = %d, want 0 after SetBuffer", tr.td.ActualLength)
	}
	if len(tr.Actual()) != 0 {
		t.Errorf("Actual() length = %d, want 0", len(tr.Actual()))
	}
}

func TestActual_ControlOffset(t *testing.T) {
	h := newTestHandle()

	tr, err := Control(h, 0x00, make([]byte, 18), 0x80, 0x06, 0x0100, 0, time.Second)
	if err != nil {
		t.Fatalf("Control failed: %v", err)
	}
	defer tr.Close()

	// Engine wrote 4 bytes past the setup header
	copy(tr.td.Buffer[hal.SetupPacketSize:], []byte{9, 8, 7, 6})
	tr.td.ActualLength = 4

	got := tr.Actual()
	if !bytes.Equal(got, []byte{9, 8, 7, 6}) {
		t.Errorf("Actual() = % X, want 09 08 07 06", got)
	}
	if &got[0] != &tr.buf[hal.SetupPacketSize] {
		t.Error("Actual() must alias the owned buffer past the setup header")
	}
}

func TestClose_Idempotent(t *testing.T) {
	h := newTestHandle()

	tr, err := Bulk(h, 0x01, make([]byte, 4), time.Second)
	if err != nil {
		t.Fatalf("Bulk failed: %v", err)
	}

	if err := tr.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestClosedHandle(t *testing.T) {
	h := newTestHandle()
	h.Close()

	if _, err := Bulk(h, 0x81, make([]byte, 8), time.Second); !errors.Is(err, pkg.ErrNoDevice) {
		t.Errorf("Bulk on closed handle = %v, want ErrNoDevice", err)
	}
}

func TestTransferStatus_String(t *testing.T) {
	tests := []struct {
		status TransferStatus
		want   string
	}{
		{TransferSuccess, "success"},
		{TransferError, "error"},
		{TransferTimeout, "timeout"},
		{TransferCancelled, "cancelled"},
		{TransferStall, "stall"},
		{TransferNoDevice, "no device"},
		{TransferOverflow, "overflow"},
		{TransferUnknown, "unknown"},
		{TransferStatus(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("TransferStatus(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}
