// Package websocket accepts command tokens over a websocket.
package websocket

import (
	"io"
	"net/http"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// Replies sent back for each command.
const (
	ReplyOK          = "ok"
	ReplyErrorPrefix = "error: "
)

// Commander accepts a raw command token.
type Commander interface {
	Command(p []byte) error
}

// Handler serves one command per websocket message.
type Handler struct {
	Commander Commander
}

// NewHandler creates a Handler.
func NewHandler(cmd Commander) *Handler {
	return &Handler{Commander: cmd}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(h.serve).ServeHTTP(w, r)
}

func (h *Handler) serve(conn *websocket.Conn) {
	defer conn.Close()
	peer := conn.Request().RemoteAddr
	glog.V(2).Infof("websocket %s connected", peer)
	for {
		var pkt []byte
		if err := websocket.Message.Receive(conn, &pkt); err != nil {
			if err != io.EOF {
				glog.Warningf("websocket %s: %v", peer, err)
			}
			glog.V(2).Infof("websocket %s disconnected", peer)
			return
		}
		reply := ReplyOK
		if err := h.Commander.Command(pkt); err != nil {
			reply = ReplyErrorPrefix + err.Error()
		}
		if err := websocket.Message.Send(conn, reply); err != nil {
			glog.Warningf("websocket %s: %v", peer, err)
			return
		}
	}
}
