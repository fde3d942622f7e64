// Command file mirrors original_source/examples/file.rs: read a file
// called "in" in the working directory, print it, then write the same
// bytes to "out".
package main

import (
	"log"

	"github.com/jakobt/agrippa/fs"
	"github.com/jakobt/agrippa/reactor"
)

func main() {
	re, err := reactor.New(256)
	if err != nil {
		log.Fatalf("reactor.New: %v", err)
	}

	re.Spawn(reactor.Normal, func(t *reactor.Task) error {
		in, err := fs.Open(t, "in", fs.NewOpenOptions())
		if err != nil {
			return err
		}
		data, err := in.ReadAll(t)
		if err != nil {
			return err
		}
		log.Printf("Read file %q", string(data))
		if err := in.Close(t); err != nil {
			return err
		}

		out, err := fs.Create(t, "out")
		if err != nil {
			return err
		}
		if err := out.Write(t, data, 0); err != nil {
			return err
		}
		return out.Close(t)
	})

	if err := re.Run(); err != nil {
		log.Fatalf("reactor.Run: %v", err)
	}
}
