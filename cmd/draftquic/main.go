// Command draftquic is a thin demo client: it dials a server, fetches one
// or more resources over their own stream, and prints what came back. It
// exists to exercise the library end to end, not as a real HTTP/0.9 client.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/draftquic/draftquic"
	"golang.org/x/sync/errgroup"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <host> <port> [resource[,resource...]|version]\n", os.Args[0])
		os.Exit(-1)
	}
	host, port := os.Args[1], os.Args[2]
	if _, err := strconv.Atoi(port); err != nil {
		fmt.Fprintf(os.Stderr, "invalid port %q: %s\n", port, err)
		os.Exit(-1)
	}

	mode := "version"
	if len(os.Args) > 3 {
		mode = os.Args[3]
	}

	if err := run(host, port, mode); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(-1)
	}
}

func run(host, port, mode string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tlsConf := &tls.Config{InsecureSkipVerify: true, ServerName: host}
	conn, err := quic.DialAddr(ctx, host+":"+port, tlsConf, nil)
	if err != nil {
		return fmt.Errorf("dial %s:%s: %w", host, port, err)
	}
	defer conn.CloseWithError(0, "done")

	if mode == "version" {
		fmt.Println("handshake complete")
		return nil
	}

	var g errgroup.Group
	for _, resource := range strings.Split(mode, ",") {
		resource := resource
		g.Go(func() error { return fetch(conn, resource) })
	}
	return g.Wait()
}

func fetch(conn *quic.Connection, resource string) error {
	str, err := conn.OpenStream()
	if err != nil {
		return fmt.Errorf("opening stream for %q: %w", resource, err)
	}
	if _, err := str.Write([]byte("GET " + resource + "\n")); err != nil {
		return fmt.Errorf("writing request for %q: %w", resource, err)
	}
	if err := str.Close(); err != nil {
		return fmt.Errorf("closing write side for %q: %w", resource, err)
	}
	body, err := io.ReadAll(str)
	if err != nil {
		return fmt.Errorf("reading response for %q: %w", resource, err)
	}
	fmt.Printf("%s: %d bytes\n", resource, len(body))
	return nil
}
