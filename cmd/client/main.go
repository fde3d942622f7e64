// Command client mirrors original_source/examples/client.rs: connect to
// a verbsserver over TCP, exchange verbs addresses, establish an RC
// connection, and send one buffer.
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
		socket, err := tcpnet.Connect(t, "127.0.0.1:1234")
		if err != nil {
			return err
		}
		log.Print("CONNECTED")

		builder, err := verbs.Connect(t)
		if err != nil {
			return err
		}
		addr := builder.LocalAddress()
		log.Printf("Send addr %+v", addr)
		if err := tcpnet.WriteItem(t, socket, &addr); err != nil {
			return err
		}
		remoteAddr, err := tcpnet.ReadItem[verbs.Addr](t, socket)
		if err != nil {
			return err
		}
		if err := socket.Close(t); err != nil {
			return err
		}
		log.Printf("Got remote addr %+v", remoteAddr)

		conn, err := builder.Connect(remoteAddr)
		if err != nil {
			return err
		}

		buf, err := verbs.GetBuffer(t)
		if err != nil {
			return err
		}
		log.Print("Filling buffer")
		data := buf.Bytes()
		for i := 0; i < 16; i++ {
			data[i] = byte(i)
		}
		buf.SetLen(16)
		if err := conn.Send(t, buf); err != nil {
			return err
		}
		log.Print("SENT EVERYTHING")
		conn.Close()
		return nil
	})

	if err := re.Run(); err != nil {
		log.Fatalf("reactor.Run: %v", err)
	}
}
