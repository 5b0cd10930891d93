// Package wire implements the fixed-layout binary telemetry frame: a
// format-tagged, versioned datagram with an optional CRC-32 trailer.
//
// Decoding is two-phase. View validates the byte layout (length, magic,
// version, checksum) and returns a FrameView that borrows the input
// buffer; its accessors index directly with no further checks and no
// copying. Decode then validates field bounds and copies the values into
// a fixed-size domain.Sample, so nothing retains the packet buffer after
// the ingest step returns.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"time"

	"github.com/pingu-73/telemetry-pipeline/internal/domain"
)

var (
	// ErrMalformedFrame covers truncated frames, unknown format tags, and
	// field values outside their wire-level bounds.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrVersionMismatch means the format tag was recognized but the
	// version is not supported by this decoder.
	ErrVersionMismatch = errors.New("unsupported frame version")
	// ErrChecksumFailure means the frame carried a checksum that did not
	// verify.
	ErrChecksumFailure = errors.New("frame checksum failure")
)

const (
	// Magic tags every telemetry frame.
	Magic = 0xF1
	// Version1 is the only frame version this decoder understands.
	Version1 = 0x01

	// FlagChecksum marks a frame with a CRC-32 (IEEE) trailer.
	FlagChecksum = 0x01
	// FlagDRS carries the DRS-active bit.
	FlagDRS = 0x02

	// BaseLen is the fixed frame body length; ChecksumLen is the optional
	// trailer.
	BaseLen     = 64
	ChecksumLen = 4
	MaxFrameLen = BaseLen + ChecksumLen
)

// Frame body offsets. All multi-byte fields are big-endian.
const (
	offMagic     = 0
	offVersion   = 1
	offFlags     = 2
	offCarID     = 3
	offPriority  = 4
	offGear      = 5
	offSeq       = 6
	offCaptured  = 10 // unix microseconds
	offSpeed     = 18
	offRPM       = 20
	offThrottle  = 22
	offBrake     = 26
	offSteering  = 30
	offPosX      = 34
	offPosY      = 38
	offPosZ      = 42
	offWaterTemp = 46
	offOilPress  = 48
	offFuelFlow  = 52
	offTyreTemps = 56
)

// Capture timestamps outside this range are treated as implausible.
var (
	minCaptured = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	maxCaptured = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
)

// FrameView is a validated, zero-copy view over one frame. It borrows the
// underlying buffer: the view is only valid until the buffer is reused.
type FrameView struct {
	buf []byte
}

// View validates the byte layout of buf and returns a FrameView. Every
// length check happens here, before any accessor indexes the buffer.
func View(buf []byte) (FrameView, error) {
	if len(buf) < BaseLen {
		return FrameView{}, fmt.Errorf("%w: %d bytes, need %d", ErrMalformedFrame, len(buf), BaseLen)
	}
	if buf[offMagic] != Magic {
		return FrameView{}, fmt.Errorf("%w: bad magic 0x%02x", ErrMalformedFrame, buf[offMagic])
	}
	if buf[offVersion] != Version1 {
		return FrameView{}, fmt.Errorf("%w: version %d", ErrVersionMismatch, buf[offVersion])
	}

	want := BaseLen
	if buf[offFlags]&FlagChecksum != 0 {
		want += ChecksumLen
	}
	if len(buf) != want {
		return FrameView{}, fmt.Errorf("%w: %d bytes, want %d", ErrMalformedFrame, len(buf), want)
	}
	if buf[offFlags]&FlagChecksum != 0 {
		got := binary.BigEndian.Uint32(buf[BaseLen:])
		if sum := crc32.ChecksumIEEE(buf[:BaseLen]); sum != got {
			return FrameView{}, fmt.Errorf("%w: have %08x, computed %08x", ErrChecksumFailure, got, sum)
		}
	}
	return FrameView{buf: buf}, nil
}

func (v FrameView) CarID() uint8    { return v.buf[offCarID] }
func (v FrameView) Seq() uint32     { return binary.BigEndian.Uint32(v.buf[offSeq:]) }
func (v FrameView) SpeedKmh() uint16 { return binary.BigEndian.Uint16(v.buf[offSpeed:]) }
func (v FrameView) RPM() uint16     { return binary.BigEndian.Uint16(v.buf[offRPM:]) }
func (v FrameView) Gear() int8      { return int8(v.buf[offGear]) }
func (v FrameView) DRSActive() bool { return v.buf[offFlags]&FlagDRS != 0 }

func (v FrameView) Priority() domain.PriorityClass {
	return domain.PriorityClass(v.buf[offPriority])
}

func (v FrameView) Captured() time.Time {
	us := binary.BigEndian.Uint64(v.buf[offCaptured:])
	return time.UnixMicro(int64(us)).UTC()
}

func (v FrameView) Throttle() float32 { return v.f32(offThrottle) }
func (v FrameView) Brake() float32    { return v.f32(offBrake) }
func (v FrameView) Steering() float32 { return v.f32(offSteering) }

func (v FrameView) f32(off int) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(v.buf[off:]))
}

func (v FrameView) i16(off int) int16 {
	return int16(binary.BigEndian.Uint16(v.buf[off:]))
}

// Decode validates field bounds and copies the frame into a Sample. The
// returned Sample owns all of its data; the view's buffer may be reused
// afterwards.
func (v FrameView) Decode() (domain.Sample, error) {
	s := domain.Sample{
		CarID:     v.CarID(),
		Seq:       v.Seq(),
		Captured:  v.Captured(),
		Priority:  v.Priority(),
		SpeedKmh:  v.SpeedKmh(),
		RPM:       v.RPM(),
		Gear:      v.Gear(),
		Throttle:  v.Throttle(),
		Brake:     v.Brake(),
		Steering:  v.Steering(),
		DRSActive: v.DRSActive(),

		PosX: v.f32(offPosX),
		PosY: v.f32(offPosY),
		PosZ: v.f32(offPosZ),

		WaterTempC:     v.i16(offWaterTemp),
		OilPressureBar: v.f32(offOilPress),
		FuelFlowKgH:    v.f32(offFuelFlow),
	}
	for i := range s.TyreTempC {
		s.TyreTempC[i] = v.i16(offTyreTemps + 2*i)
	}
	if err := validate(&s); err != nil {
		return domain.Sample{}, err
	}
	return s, nil
}

// Decode is the single-shot helper: View + FrameView.Decode.
func Decode(buf []byte) (domain.Sample, error) {
	v, err := View(buf)
	if err != nil {
		return domain.Sample{}, err
	}
	return v.Decode()
}

func validate(s *domain.Sample) error {
	if !s.Priority.Valid() {
		return fmt.Errorf("%w: priority class %d", ErrMalformedFrame, s.Priority)
	}
	if s.Captured.Before(minCaptured) || s.Captured.After(maxCaptured) {
		return fmt.Errorf("%w: implausible capture time %s", ErrMalformedFrame, s.Captured)
	}
	if s.Gear < -1 || s.Gear > 8 {
		return fmt.Errorf("%w: gear %d", ErrMalformedFrame, s.Gear)
	}
	if s.SpeedKmh > 450 {
		return fmt.Errorf("%w: speed %d km/h", ErrMalformedFrame, s.SpeedKmh)
	}
	if s.RPM > 20000 {
		return fmt.Errorf("%w: rpm %d", ErrMalformedFrame, s.RPM)
	}
	if !inRange(s.Throttle, 0, 1) {
		return fmt.Errorf("%w: throttle %f", ErrMalformedFrame, s.Throttle)
	}
	if !inRange(s.Brake, 0, 1) {
		return fmt.Errorf("%w: brake %f", ErrMalformedFrame, s.Brake)
	}
	if !inRange(s.Steering, -1, 1) {
		return fmt.Errorf("%w: steering %f", ErrMalformedFrame, s.Steering)
	}
	if !finite(s.PosX) || !finite(s.PosY) || !finite(s.PosZ) {
		return fmt.Errorf("%w: non-finite position", ErrMalformedFrame)
	}
	if !inRange(s.OilPressureBar, 0, 12) {
		return fmt.Errorf("%w: oil pressure %f bar", ErrMalformedFrame, s.OilPressureBar)
	}
	if !inRange(s.FuelFlowKgH, 0, 500) {
		return fmt.Errorf("%w: fuel flow %f kg/h", ErrMalformedFrame, s.FuelFlowKgH)
	}
	return nil
}

func inRange(f float32, lo, hi float32) bool {
	return finite(f) && f >= lo && f <= hi
}

func finite(f float32) bool {
	f64 := float64(f)
	return !math.IsNaN(f64) && !math.IsInf(f64, 0)
}

// Encode serializes a Sample into a new frame buffer. withChecksum appends
// the CRC-32 trailer. Used by the simulator, the recorder replay path, and
// round-trip tests; the hot path never encodes.
func Encode(s domain.Sample, withChecksum bool) []byte {
	n := BaseLen
	if withChecksum {
		n += ChecksumLen
	}
	buf := make([]byte, n)

	buf[offMagic] = Magic
	buf[offVersion] = Version1
	var flags byte
	if withChecksum {
		flags |= FlagChecksum
	}
	if s.DRSActive {
		flags |= FlagDRS
	}
	buf[offFlags] = flags
	buf[offCarID] = s.CarID
	buf[offPriority] = byte(s.Priority)
	buf[offGear] = byte(s.Gear)
	binary.BigEndian.PutUint32(buf[offSeq:], s.Seq)
	binary.BigEndian.PutUint64(buf[offCaptured:], uint64(s.Captured.UnixMicro()))
	binary.BigEndian.PutUint16(buf[offSpeed:], s.SpeedKmh)
	binary.BigEndian.PutUint16(buf[offRPM:], s.RPM)
	putF32(buf[offThrottle:], s.Throttle)
	putF32(buf[offBrake:], s.Brake)
	putF32(buf[offSteering:], s.Steering)
	putF32(buf[offPosX:], s.PosX)
	putF32(buf[offPosY:], s.PosY)
	putF32(buf[offPosZ:], s.PosZ)
	binary.BigEndian.PutUint16(buf[offWaterTemp:], uint16(s.WaterTempC))
	putF32(buf[offOilPress:], s.OilPressureBar)
	putF32(buf[offFuelFlow:], s.FuelFlowKgH)
	for i, t := range s.TyreTempC {
		binary.BigEndian.PutUint16(buf[offTyreTemps+2*i:], uint16(t))
	}

	if withChecksum {
		binary.BigEndian.PutUint32(buf[BaseLen:], crc32.ChecksumIEEE(buf[:BaseLen]))
	}
	return buf
}

func putF32(dst []byte, f float32) {
	binary.BigEndian.PutUint32(dst, math.Float32bits(f))
}
