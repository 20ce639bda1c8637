package osc

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abossard/vjbus/pkg/log"
)

func init() {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true, Output: io.Discard})
}

func TestPublishSendsBundleThenSingles(t *testing.T) {
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	defer ln.Close()

	host, portStr, err := net.SplitHostPort(ln.LocalAddr().String())
	require.NoError(t, err)
	require.NotEmpty(t, host)

	addr := ln.LocalAddr().(*net.UDPAddr)
	client, err := Dial("127.0.0.1", addr.Port)
	require.NoError(t, err)
	defer client.Close()

	_ = portStr

	features := Features{
		Levels:     [8]float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8},
		BeatFlag:   true,
		BeatEnergy: 0.9,
		BPM:        128,
	}

	done := make(chan struct{})
	go func() {
		Publish(client, features)
		close(done)
	}()

	buf := make([]byte, 2048)
	require.NoError(t, ln.SetReadDeadline(time.Now().Add(time.Second)))
	n, _, err := ln.ReadFromUDP(buf)
	require.NoError(t, err)
	require.True(t, n >= 8)
	require.Equal(t, "#bundle\x00", string(buf[:8]))

	// Drain the remaining single-value datagrams so the goroutine doesn't block.
	for i := 0; i < 12; i++ {
		require.NoError(t, ln.SetReadDeadline(time.Now().Add(time.Second)))
		_, _, err := ln.ReadFromUDP(buf)
		require.NoError(t, err)
	}

	<-done
}
