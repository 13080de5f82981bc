// SPDX-FileCopyrightText: 2026 The distrod authors
//
// SPDX-License-Identifier: MIT

package portproxy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"

	"golang.org/x/sync/errgroup"
)

const copyBufferSize = 64 * 1024

// Run listens on every given port and forwards accepted connections
// to the same port on destAddr. It blocks until the context is
// canceled or a listener fails.
func Run(ctx context.Context, destAddr string, ports []int) error {
	group, ctx := errgroup.WithContext(ctx)

	for _, port := range ports {
		group.Go(func() error {
			return proxyPort(ctx, destAddr, port)
		})
	}

	if err := group.Wait(); err != nil {
		return fmt.Errorf("port proxy: %w", err)
	}

	return nil
}

func proxyPort(ctx context.Context, destAddr string, port int) error {
	var config net.ListenConfig

	listener, err := config.Listen(ctx, "tcp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", port, err)
	}

	return serve(ctx, listener, net.JoinHostPort(destAddr, strconv.Itoa(port)))
}

// serve accepts connections until the context is canceled. Closing
// the listener is what unblocks Accept.
func serve(ctx context.Context, listener net.Listener, destAddr string) error {
	defer listener.Close()

	stop := context.AfterFunc(ctx, func() {
		listener.Close()
	})
	defer stop()

	slog.Info("forwarding", "from", listener.Addr(), "to", destAddr)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("accept on %s: %w", listener.Addr(), err)
		}

		go func() {
			if err := forward(ctx, conn, destAddr); err != nil {
				slog.Warn("connection failed", "dest", destAddr, "error", err)
			}
		}()
	}
}

func forward(ctx context.Context, client net.Conn, destAddr string) error {
	defer client.Close()

	var dialer net.Dialer

	upstream, err := dialer.DialContext(ctx, "tcp", destAddr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", destAddr, err)
	}
	defer upstream.Close()

	var group errgroup.Group

	group.Go(func() error {
		return copyAndCloseWrite(upstream, client)
	})
	group.Go(func() error {
		return copyAndCloseWrite(client, upstream)
	})

	return group.Wait()
}

// copyAndCloseWrite streams src into dst, then half closes dst so
// its peer sees EOF while the opposite direction keeps flowing.
func copyAndCloseWrite(dst, src net.Conn) error {
	buf := make([]byte, copyBufferSize)

	_, err := io.CopyBuffer(dst, src, buf)

	if tcp, ok := dst.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}

	if err != nil {
		return fmt.Errorf("stream to %s: %w", dst.RemoteAddr(), err)
	}

	return nil
}
