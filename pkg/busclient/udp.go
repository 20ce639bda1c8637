package busclient

import "net"

// udpListener is the narrow surface SubscribeTelemetry needs from a UDP
// socket, so tests can stand up a real one without pulling in the rest of
// net.UDPConn's API.
type udpListener struct {
	conn *net.UDPConn
}

func newUDPListener(addr string) (*udpListener, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	return &udpListener{conn: conn}, nil
}

func (u *udpListener) Read(buf []byte) (int, error) {
	n, _, err := u.conn.ReadFromUDP(buf)
	return n, err
}

func (u *udpListener) LocalAddr() string {
	return u.conn.LocalAddr().String()
}

func (u *udpListener) Close() {
	_ = u.conn.Close()
}
