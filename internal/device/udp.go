package device

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"time"
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

// udpReadTimeout bounds a single Read so a silent camera surfaces as a read
// failure instead of blocking shutdown.
const udpReadTimeout = time.Second

// UDPCamera reassembles JPEG frames pushed over UDP by network cameras.
// A packet starting with SOI begins a frame; one ending with EOI completes it.
type UDPCamera struct {
	conn     *net.UDPConn
	packet   []byte
	frame    bytes.Buffer
	rotation int
}

// ListenUDP binds addr (for example ":9000") and returns a device reading frames from it.
func ListenUDP(addr string, rotation int) (*UDPCamera, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP %s: %w", addr, err)
	}
	return &UDPCamera{conn: conn, packet: make([]byte, 65535), rotation: rotation}, nil
}

// Addr is the bound local address.
func (c *UDPCamera) Addr() net.Addr {
	return c.conn.LocalAddr()
}

// Configure is a no-op; the camera decides its own mode.
func (c *UDPCamera) Configure(width, height, fps int) error {
	return nil
}

func (c *UDPCamera) Read() ([]byte, error) {
	frame, err := c.readFrame()
	if err != nil {
		return nil, err
	}
	return RotateJPEG(frame, c.rotation)
}

func (c *UDPCamera) readFrame() ([]byte, error) {
	deadline := time.Now().Add(udpReadTimeout)
	for {
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		n, _, err := c.conn.ReadFromUDP(c.packet)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, errors.New("no complete frame received")
			}
			return nil, fmt.Errorf("error reading UDP packet: %w", err)
		}

		data := c.packet[:n]
		if bytes.HasPrefix(data, jpegHeader) {
			c.frame.Reset()
		}
		c.frame.Write(data)

		if bytes.HasSuffix(data, jpegFooter) {
			full := make([]byte, c.frame.Len())
			copy(full, c.frame.Bytes())
			c.frame.Reset()
			return full, nil
		}
	}
}

func (c *UDPCamera) Close() error {
	return c.conn.Close()
}
