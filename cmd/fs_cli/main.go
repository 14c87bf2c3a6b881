// Command fs_cli is an interactive console for FreeSWITCH's event socket.
//
// Usage:
//
//	fs_cli                      # default profile, interactive
//	fs_cli pbx2 -R --events     # profile pbx2, reconnect, channel events
//	fs_cli -x status -x version # run commands and exit
package main

import (
	"errors"
	"fmt"
	"os"
)

// reportedError has already been explained to the user on stderr.
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
