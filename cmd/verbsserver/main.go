// Command verbsserver mirrors original_source/examples/verbs_server.rs:
// accept TCP connections, exchange verbs addresses over each one,
// establish an RC connection, and receive one buffer before closing.
package main

import (
	"log"

	"github.com/jakobt/agrippa/reactor"
	"github.com/jakobt/agrippa/tcpnet"
	"github.com/jakobt/agrippa/verbs"
)

func main() {
	re, err := reactor.New(256)
	if err != nil {
		log.Fatalf("reactor.New: %v", err)
	}
	if _, err := verbs.NewDevice(re); err != nil {
		log.Fatalf("verbs.NewDevice: %v", err)
	}

	re.Spawn(reactor.Normal, func(t *reactor.Task) error {
		listener, err := tcpnet.Listen("127.0.0.1:1234")
		if err != nil {
			return err
		}
		for {
			socket, err := listener.Accept(t)
			if err != nil {
				return err
			}
			reactor.SpawnTask(t, reactor.Normal, func(t *reactor.Task) error {
				log.Print("Got connection")

				remoteAddr, err := tcpnet.ReadItem[verbs.Addr](t, socket)
				if err != nil {
					return err
				}

				builder, err := verbs.Connect(t)
				if err != nil {
					return err
				}
				localAddr := builder.LocalAddress()
				log.Printf("Got addr %+v", remoteAddr)

				if err := tcpnet.WriteItem(t, socket, &localAddr); err != nil {
					return err
				}
				log.Printf("Send addr %+v", localAddr)

				conn, err := builder.Connect(remoteAddr)
				if err != nil {
					return err
				}
				log.Print("Connected")

				buf, err := conn.Recv(t)
				if err != nil {
					return err
				}
				log.Print("Got message")
				verbs.PutBuffer(buf)
				conn.Close()

				log.Print("CLOSED")
				return socket.Close(t)
			})
		}
	})

	if err := re.Run(); err != nil {
		log.Fatalf("reactor.Run: %v", err)
	}
}
