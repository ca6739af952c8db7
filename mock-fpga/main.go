// Command mock-fpga is a TCP stand-in for the board: it greets each client
// and echoes every byte back. Point the tester at it with
// --port tcp://localhost:9999.
package main

import (
	"flag"
	"fmt"
	"io"
	"net"
)

const banner = "MOCK FPGA READY\r\n"

func main() {
	addr := flag.String("listen", ":9999", "TCP listen address")
	flag.Parse()

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		fmt.Println("Failed to start mock FPGA:", err)
		return
	}
	defer listener.Close()

	fmt.Println("=== Mock FPGA ===")
	fmt.Println("Listening on TCP", listener.Addr())
	fmt.Println("Waiting for connections...")

	serve(listener, nil)
}

// serve accepts until the listener is closed. Log lines go to logw when set.
func serve(listener net.Listener, logw io.Writer) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}
		logf(logw, "[MockFPGA] Client connected: %s\n", conn.RemoteAddr())
		go handleConnection(conn, logw)
	}
}

func handleConnection(conn net.Conn, logw io.Writer) {
	defer conn.Close()

	if _, err := io.WriteString(conn, banner); err != nil {
		return
	}

	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			logf(logw, "[MockFPGA] RX %x\n", buf[:n])
			if _, werr := conn.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			logf(logw, "[MockFPGA] Connection closed\n")
			return
		}
	}
}

func logf(w io.Writer, format string, args ...interface{}) {
	if w == nil {
		fmt.Printf(format, args...)
		return
	}
	fmt.Fprintf(w, format, args...)
}
