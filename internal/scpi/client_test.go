package scpi

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient wires a Client to an in-process fake instrument. The handler
// maps a received command to an optional reply; every received command is also
// published on the returned channel.
func newTestClient(t *testing.T, timeout time.Duration, handler func(cmd string) (string, bool)) (*Client, <-chan string) {
	t.Helper()

	clientConn, serverConn := net.Pipe()
	received := make(chan string, 16)

	go func() {
		scanner := bufio.NewScanner(serverConn)
		for scanner.Scan() {
			cmd := scanner.Text()
			received <- cmd
			if reply, ok := handler(cmd); ok {
				serverConn.Write([]byte(reply + "\n"))
			}
		}
	}()

	t.Cleanup(func() {
		clientConn.Close()
		serverConn.Close()
	})

	return NewClient(clientConn, timeout, zerolog.Nop()), received
}

func TestQueryReturnsTrimmedResponse(t *testing.T) {
	c, _ := newTestClient(t, time.Second, func(cmd string) (string, bool) {
		if cmd == "*IDN?" {
			return "Acme Instruments,SA-3000,12345,1.2.3\r", true
		}
		return "", false
	})

	resp, err := c.Query("*IDN?")
	require.NoError(t, err)
	assert.Equal(t, "Acme Instruments,SA-3000,12345,1.2.3", resp)
}

func TestSetFormatsCommandWithValue(t *testing.T) {
	c, received := newTestClient(t, time.Second, func(string) (string, bool) { return "", false })

	require.NoError(t, c.Set(":SENS:FREQ:CENT", "500000000"))
	assert.Equal(t, ":SENS:FREQ:CENT 500000000", <-received)
}

func TestQueryTimeoutTriggersReset(t *testing.T) {
	// Handler never replies, so the read deadline expires.
	c, received := newTestClient(t, 50*time.Millisecond, func(string) (string, bool) { return "", false })

	_, err := c.Query(":SENS:BAND?")
	require.Error(t, err)

	assert.Equal(t, ":SENS:BAND?", <-received)
	select {
	case cmd := <-received:
		assert.Equal(t, "*RST", cmd)
	case <-time.After(time.Second):
		t.Fatal("expected a *RST recovery command")
	}
}

func TestWaitOPC(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		send  bool
		want  OPCResult
	}{
		{name: "operation complete", reply: "1", send: true, want: OPCPassed},
		{name: "unexpected value", reply: "0", send: true, want: OPCFailed},
		{name: "no response", send: false, want: OPCTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, time.Second, func(cmd string) (string, bool) {
				if cmd == "*OPC?" && tt.send {
					return tt.reply, true
				}
				return "", false
			})

			assert.Equal(t, tt.want, c.WaitOPC(100*time.Millisecond))
		})
	}
}

func TestResetSendsRST(t *testing.T) {
	c, received := newTestClient(t, time.Second, func(string) (string, bool) { return "", false })

	require.NoError(t, c.Reset())
	assert.Equal(t, "*RST", <-received)
}
