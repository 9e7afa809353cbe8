// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

package peercred

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Get returns the credentials of the process connected to the far end
// of conn. Only Unix domain sockets carry peer credentials; any other
// connection type returns an error and the caller degrades to the
// unknown-credentials sentinel.
func Get(conn net.Conn) (Credentials, error) {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return Credentials{}, fmt.Errorf("peer credentials require a unix socket, got %T", conn)
	}
	rawConn, err := unixConn.SyscallConn()
	if err != nil {
		return Credentials{}, fmt.Errorf("raw connection access: %w", err)
	}

	var ucred *unix.Ucred
	var sockoptErr error
	controlErr := rawConn.Control(func(fd uintptr) {
		ucred, sockoptErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if controlErr != nil {
		return Credentials{}, fmt.Errorf("raw connection control: %w", controlErr)
	}
	if sockoptErr != nil {
		return Credentials{}, fmt.Errorf("SO_PEERCRED: %w", sockoptErr)
	}

	return Credentials{UID: int32(ucred.Uid), PID: ucred.Pid}, nil
}
