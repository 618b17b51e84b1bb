package main

import (
	"fmt"
	"os"

	cli "github.com/spf13/pflag"

	"shimi/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath, "Daemon control socket")
	cli.Parse()

	cmd := ipc.CmdTrigger
	if args := cli.Args(); len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case ipc.CmdTrigger, ipc.CmdStop, ipc.CmdClear, ipc.CmdStatus:
	default:
		fmt.Fprintln(os.Stderr, "usage: shimi-ctl [trigger|stop|clear|status]")
		os.Exit(2)
	}

	reply, err := ipc.SendCommand(*socket, cmd)
	if err != nil {
		fmt.Println("shimi-daemon not running:", err)
		os.Exit(1)
	}

	if reply.Err != "" {
		fmt.Println("error:", reply.Err)
		os.Exit(1)
	}
	fmt.Printf("state=%s turns=%d\n", reply.State, reply.Turns)
}
