// Command server mirrors original_source/examples/web_server.rs: accept
// TCP connections and read up to 100 bytes from each, logging what it
// saw, one spawned Task per connection.
package main

import (
	"log"

	"github.com/jakobt/agrippa/reactor"
	"github.com/jakobt/agrippa/tcpnet"
)

func handleClient(t *reactor.Task, socket *tcpnet.Socket) error {
	data := make([]byte, 100)
	n, err := socket.Read(t, data)
	if err != nil {
		return err
	}
	log.Printf("Read %d", n)
	return nil
}

func acceptConnections(t *reactor.Task, listener *tcpnet.Listener) error {
	for {
		socket, err := listener.Accept(t)
		if err != nil {
			return err
		}
		reactor.SpawnTask(t, reactor.Normal, func(t *reactor.Task) error {
			err := handleClient(t, socket)
			log.Print("Closing client connection")
			if cerr := socket.Close(t); cerr != nil && err == nil {
				err = cerr
			}
			log.Print("Connection closed")
			return err
		})
	}
}

func main() {
	re, err := reactor.New(256)
	if err != nil {
		log.Fatalf("reactor.New: %v", err)
	}

	re.Spawn(reactor.Normal, func(t *reactor.Task) error {
		listener, err := tcpnet.Listen("127.0.0.1:1234")
		if err != nil {
			return err
		}
		ret := acceptConnections(t, listener)
		if cerr := listener.Close(t); cerr != nil && ret == nil {
			ret = cerr
		}
		return ret
	})

	if err := re.Run(); err != nil {
		log.Fatalf("reactor.Run: %v", err)
	}
}
