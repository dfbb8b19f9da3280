// Command mockserver runs a mock decisioning API for local regression
// runs.
//
// Usage:
//
//	mockserver [flags]
//
// Flags:
//
//	-port    Port to listen on (default: 8080)
//	-host    Host to bind to (default: localhost)
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"apidiff/testserver"
)

func main() {
	port := flag.Int("port", 8080, "port to listen on")
	host := flag.String("host", "localhost", "host to bind to")
	flag.Parse()

	server := testserver.NewServer()
	addr := fmt.Sprintf("%s:%d", *host, *port)

	fmt.Println("apidiff Mock Decisioning Server")
	fmt.Println("===============================")
	fmt.Printf("Listening on http://%s\n\n", addr)
	fmt.Println("Endpoints:")
	fmt.Println("  POST /decision            - Deterministic decision for an application")
	fmt.Println("  GET  /health              - Health check")
	fmt.Println("  ANY  /status/{code}       - Return specific status code")
	fmt.Println("  POST /delay/{ms}          - Decision delayed by milliseconds")
	fmt.Println("  POST /flaky               - Fail first N attempts per application (?fails=2)")
	fmt.Println()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		os.Exit(0)
	}()

	log.Fatal(http.ListenAndServe(addr, server.Handler()))
}
