// Command echosrv is a small TCP echo server built on the actor
// runtime: one listener actor accepts connections and spawns one
// handler actor per connection. The listener sends the handler a
// first message carrying the connection's remote address before the
// handler starts echoing lines back.
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"libactor"
)

const msgConnInfo int64 = 1

func main() {
	var addr string

	root := &cobra.Command{
		Use:   "echosrv",
		Short: "A TCP echo server backed by the actor runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(addr)
		},
	}
	root.Flags().StringVar(&addr, "addr", ":9999", "address to listen on")

	if err := root.Execute(); err != nil {
		slog.Error("echosrv exited with error", "err", err)
		os.Exit(1)
	}
}

func run(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	slog.Info("echosrv listening", "addr", ln.Addr().String())

	sys := actor.NewSystem()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("echosrv shutting down")
		_ = ln.Close()
		sys.Shutdown()
		os.Exit(0)
	}()

	sys.Spawn(func(ctx *actor.Context) {
		listenerLoop(ctx, ln)
	}, actor.Options{})

	sys.WaitFinish()
	return nil
}

func listenerLoop(ctx *actor.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			slog.Info("listener stopped accepting", "err", err)
			return
		}

		remote := conn.RemoteAddr().String()
		handler := ctx.Spawn(func(hctx *actor.Context) {
			handleConn(hctx, conn)
		}, actor.Options{})

		if err := ctx.Send(handler, msgConnInfo, []byte(remote)); err != nil {
			slog.Warn("failed to deliver connection info", "remote", remote, "err", err)
		}
	}
}

func handleConn(ctx *actor.Context, conn net.Conn) {
	defer conn.Close()

	msg, err := ctx.ReceiveTimeout(0)
	if err != nil {
		slog.Warn("handler never received connection info", "err", err)
		return
	}
	remote := msg.Payload.Bytes().String()
	ctx.ReleasePayload(msg)
	slog.Info("connection accepted", "remote", remote, "actor", ctx.Self().String())

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if _, err := conn.Write(append(append([]byte{}, line...), '\n')); err != nil {
			slog.Warn("write failed", "remote", remote, "err", err)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("read failed", "remote", remote, "err", err)
	}
	slog.Info("connection closed", "remote", remote)
}
