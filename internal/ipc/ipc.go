// Package ipc is the unix-socket control surface. shimi-ctl sends one
// JSON command per connection and reads one JSON reply back.
package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
)

const DefaultSocketPath = "/tmp/shimi.sock"

const (
	CmdTrigger = "trigger"
	CmdStop    = "stop"
	CmdClear   = "clear"
	CmdStatus  = "status"
)

type ControlMessage struct {
	Cmd string `json:"cmd"`
}

type Reply struct {
	State string `json:"state"`
	Turns int    `json:"turns"`
	Err   string `json:"err,omitempty"`
}

// StartServer listens on path and invokes handler for every command.
// The handler's reply is written back on the same connection.
func StartServer(path string, handler func(ControlMessage) Reply) (func(), error) {
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handleConn(conn, handler)
		}
	}()

	stop := func() {
		ln.Close()
		os.Remove(path)
	}
	return stop, nil
}

func handleConn(conn net.Conn, handler func(ControlMessage) Reply) {
	defer conn.Close()

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		return
	}
	reply := handler(msg)
	_ = json.NewEncoder(conn).Encode(reply)
}

// SendCommand dials the daemon socket, sends one command and returns
// the daemon's reply.
func SendCommand(path, cmd string) (Reply, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return Reply{}, err
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd}); err != nil {
		return Reply{}, err
	}

	var reply Reply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return Reply{}, err
	}
	return reply, nil
}
