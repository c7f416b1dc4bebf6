package websocket

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

type commandFunc func(p []byte) error

func (f commandFunc) Command(p []byte) error { return f(p) }

func TestHandlerReplies(t *testing.T) {
	var got []string
	srv := httptest.NewServer(NewHandler(commandFunc(func(p []byte) error {
		got = append(got, string(p))
		if string(p) == "bogus" {
			return errors.New("unknown command")
		}
		return nil
	})))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/cmd"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	defer conn.Close()

	cases := []struct {
		cmd, reply string
	}{
		{"erase", "ok"},
		{"bogus", "error: unknown command"},
		{"uarton", "ok"},
	}
	for _, c := range cases {
		require.NoError(t, websocket.Message.Send(conn, c.cmd))
		var reply string
		require.NoError(t, websocket.Message.Receive(conn, &reply))
		require.Equal(t, c.reply, reply, c.cmd)
	}
	require.Equal(t, []string{"erase", "bogus", "uarton"}, got)
}
