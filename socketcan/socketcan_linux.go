//go:build linux

package socketcan

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/aldas/go-imucan-client"
	"golang.org/x/sys/unix"
)

// Connection is raw SocketCAN socket bound to CAN interface
type Connection struct {
	socketFD int
	timeNow  func() time.Time
}

// NewConnection opens raw CAN socket and binds it to interface (ala `can0`).
func NewConnection(ifName string) (*Connection, error) {
	ifi, err := net.InterfaceByName(ifName)
	if err != nil {
		return nil, fmt.Errorf("bad ifName: %w", err)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("could not create CAN socket: %w", err)
	}

	addr := &unix.SockaddrCAN{Ifindex: ifi.Index}
	if err = unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("could not bind CAN socket: %w", err)
	}

	return &Connection{
		socketFD: fd,
		timeNow:  time.Now,
	}, nil
}

func isContinuableSocketErr(err error) bool {
	// EWOULDBLOCK - If you set a timeout on the socket with SO_RCVTIMEO or SO_SNDTIMEO - in this case, a receive or
	// send will return with EWOULDBLOCK if the timeout elapses while no input data becomes available or the output
	// buffer remains full

	// EINTR - If a signal occurs during a blocking operation, then the operation will either (a) return partial
	// completion, or (b) return failure, do nothing, and set errno to EINTR.

	return err == syscall.EWOULDBLOCK || err == syscall.EINTR
}

var errReadTimeout = errors.New("read timeout")
var errWriteTimeout = errors.New("write timeout")

// SetIMUFilter instructs kernel to deliver only extended frames of IMU device class to this socket.
func (c *Connection) SetIMUFilter() error {
	filter := []unix.CanFilter{{
		Id:   uint32(imucan.ClassIMU)<<24 | unix.CAN_EFF_FLAG,
		Mask: 0xFF000000 | unix.CAN_EFF_FLAG | unix.CAN_RTR_FLAG,
	}}
	return unix.SetsockoptCanRawFilter(c.socketFD, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, filter)
}

func (c *Connection) SetReadTimeout(timeout time.Duration) error {
	return c.setSocketTimeout(unix.SO_RCVTIMEO, timeout)
}

func (c *Connection) SetSendTimeout(timeout time.Duration) error {
	return c.setSocketTimeout(unix.SO_SNDTIMEO, timeout)
}

func (c *Connection) setSocketTimeout(opt int, timeout time.Duration) error {
	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	return unix.SetsockoptTimeval(c.socketFD, unix.SOL_SOCKET, opt, &tv)
}

func (c *Connection) Close() error {
	return unix.Close(c.socketFD)
}

func (c *Connection) SendFrame(frame imucan.RawFrame) error {
	_, err := unix.Write(c.socketFD, MarshalFrame(frame))
	if isContinuableSocketErr(err) {
		return errWriteTimeout
	}
	return err
}

func (c *Connection) ReadRawFrame() (imucan.RawFrame, error) {
	canFrame := make([]byte, frameSize)
	_, err := unix.Read(c.socketFD, canFrame)
	if err != nil {
		if isContinuableSocketErr(err) {
			return imucan.RawFrame{}, errReadTimeout
		}
		return imucan.RawFrame{}, err
	}
	return UnmarshalFrame(canFrame, c.timeNow())
}
