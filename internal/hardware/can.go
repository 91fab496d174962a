package hardware

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"vehicle-led-service/internal/logger"
	"vehicle-led-service/internal/types"

	"golang.org/x/sys/unix"
)

// readTimeout bounds a blocking read so Close is observed promptly.
const readTimeout = 200 * time.Millisecond

// CANReader reads raw frames from one SocketCAN interface.
type CANReader struct {
	ifname  string
	bus     uint8
	socket  int
	logger  *logger.Logger
	errLog  *logger.Throttled
	dropLog *logger.Throttled
	frames  atomic.Uint64
	dropped atomic.Uint64
	last    atomic.Int64
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// OpenCAN binds a raw CAN socket to ifname. Frames are tagged with bus.
func OpenCAN(ifname string, bus uint8, l *logger.Logger) (*CANReader, error) {
	socket, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("failed to create CAN socket: %w", err)
	}

	ifreq, err := unix.NewIfreq(ifname)
	if err != nil {
		unix.Close(socket)
		return nil, fmt.Errorf("failed to create ifreq: %w", err)
	}
	if err := unix.IoctlIfreq(socket, unix.SIOCGIFINDEX, ifreq); err != nil {
		unix.Close(socket)
		return nil, fmt.Errorf("failed to get interface index of %s: %w", ifname, err)
	}

	if err := unix.Bind(socket, &unix.SockaddrCAN{Ifindex: int(ifreq.Uint32())}); err != nil {
		unix.Close(socket)
		return nil, fmt.Errorf("failed to bind socket to %s: %w", ifname, err)
	}

	tv := unix.NsecToTimeval(readTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(socket, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(socket)
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return &CANReader{
		ifname:  ifname,
		bus:     bus,
		socket:  socket,
		logger:  l,
		errLog:  l.Throttled(5 * time.Second),
		dropLog: l.Throttled(time.Second),
		stop:    make(chan struct{}),
	}, nil
}

// SetFilter restricts reception to exact standard ids. An empty list keeps
// receiving everything.
func (r *CANReader) SetFilter(ids []uint32) error {
	if len(ids) == 0 {
		return nil
	}
	filters := make([]unix.CanFilter, len(ids))
	for i, id := range ids {
		filters[i] = unix.CanFilter{Id: id, Mask: unix.CAN_SFF_MASK | unix.CAN_EFF_FLAG | unix.CAN_RTR_FLAG}
	}
	if err := unix.SetsockoptCanRawFilter(r.socket, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, filters); err != nil {
		return fmt.Errorf("failed to set filter on %s: %w", r.ifname, err)
	}
	r.logger.Infof("Filtering %s to %d ids", r.ifname, len(ids))
	return nil
}

// Start reads frames into out until Close. A full channel drops the frame.
func (r *CANReader) Start(out chan<- types.Frame) {
	r.wg.Add(1)
	go r.readLoop(out)
}

func (r *CANReader) readLoop(out chan<- types.Frame) {
	defer r.wg.Done()
	r.logger.Infof("Reading frames from %s (bus %d)", r.ifname, r.bus)

	buf := make([]byte, canFrameSize)
	for {
		select {
		case <-r.stop:
			return
		default:
		}

		n, err := unix.Read(r.socket, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			select {
			case <-r.stop:
				return
			default:
			}
			r.errLog.Warnf("Read error on %s: %v", r.ifname, err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		now := time.Now()
		f, ok := ParseFrame(buf[:n], r.bus, now)
		if !ok {
			continue
		}
		r.frames.Add(1)
		r.last.Store(now.UnixNano())

		select {
		case out <- f:
		default:
			r.dropLog.Warnf("Frame channel full, dropped %d frames from %s", r.dropped.Add(1), r.ifname)
		}
	}
}

// ParseFrame decodes a struct can_frame. Only standard 11-bit data frames
// are accepted; extended, error and remote frames are rejected. Payload
// bytes beyond DLC are zeroed.
func ParseFrame(buf []byte, bus uint8, ts time.Time) (types.Frame, bool) {
	if len(buf) < canFrameSize {
		return types.Frame{}, false
	}
	raw := binary.LittleEndian.Uint32(buf[0:4])
	if raw&(unix.CAN_EFF_FLAG|unix.CAN_ERR_FLAG|unix.CAN_RTR_FLAG) != 0 {
		return types.Frame{}, false
	}

	f := types.Frame{
		ID:        raw & unix.CAN_SFF_MASK,
		DLC:       min(buf[4], 8),
		Timestamp: ts,
		Bus:       bus,
	}
	copy(f.Data[:f.DLC], buf[8:8+int(f.DLC)])
	return f, true
}

func (r *CANReader) Interface() string { return r.ifname }

func (r *CANReader) Bus() uint8 { return r.bus }

// Frames returns how many valid frames were received.
func (r *CANReader) Frames() uint64 { return r.frames.Load() }

func (r *CANReader) Dropped() uint64 { return r.dropped.Load() }

// LastFrame returns the receive time of the newest frame, or the zero time.
func (r *CANReader) LastFrame() time.Time {
	ns := r.last.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (r *CANReader) Close() error {
	var err error
	r.once.Do(func() {
		close(r.stop)
		r.wg.Wait()
		err = unix.Close(r.socket)
		r.logger.Infof("Closed %s after %d frames (%d dropped)", r.ifname, r.frames.Load(), r.dropped.Load())
	})
	return err
}
