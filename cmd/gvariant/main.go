// Command gvariant inspects GVariant-encoded data: it parses type
// strings and decodes serialized values for human consumption.
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/creachadair/mds/slice"
	"github.com/danderson/gvariant"
	"github.com/kr/pretty"
)

var dumpArgs struct {
	Chunk int `flag:"chunk,Split the input into spans of this many bytes before decoding"`
}

func main() {
	root := &command.C{
		Name:  "gvariant",
		Usage: "command args...",
		Commands: []*command.C{
			{
				Name:  "type",
				Usage: "type <signature>",
				Help: `Parse a type signature.

Prints the alignment, fixed size and nesting depth of each complete
type in the signature.`,
				Run: command.Adapt(runType),
			},
			{
				Name:  "dump",
				Usage: "dump <type> [hexdata]",
				Help: `Decode serialized data.

The data is given as hex on the command line, or read from stdin if
omitted. The decoded value is pretty-printed. Malformed data decodes
to default values, the way a receiver would see it.`,
				SetFlags: command.Flags(flax.MustBind, &dumpArgs),
				Run:      command.Adapt(runDump),
			},
			command.HelpCommand(nil),
		},
	}
	command.RunOrFail(root.NewEnv(nil), os.Args[1:])
}

func runType(env *command.Env, signature string) error {
	rest := signature
	for rest != "" {
		info, err := gvariant.NextType(rest)
		if err != nil {
			return fmt.Errorf("parsing %q: %w", rest, err)
		}
		size := "dynamic"
		if info.Fixed() {
			size = fmt.Sprintf("%d bytes", info.Size)
		}
		fmt.Printf("%s: align %d, %s, depth %d\n", info.Type, 1<<info.Alignment, size, info.Depth)
		rest = rest[len(info.Type):]
	}
	return nil
}

func runDump(env *command.Env, typ string, rest ...string) error {
	var (
		data []byte
		err  error
	)
	switch len(rest) {
	case 0:
		data, err = io.ReadAll(os.Stdin)
	case 1:
		data, err = hex.DecodeString(strings.Map(dropSpace, rest[0]))
	default:
		return errors.New("at most one data argument allowed")
	}
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	// Optionally shatter the input, to exercise decoding across span
	// boundaries the way scattered network buffers would.
	spans := [][]byte{data}
	if n := dumpArgs.Chunk; n > 0 && len(data) > n {
		spans = slice.Chunks(data, (len(data)+n-1)/n)
	}

	v, err := gvariant.NewFromSpans(typ, spans...)
	if err != nil {
		return err
	}
	var out any
	if err := gvariant.Unmarshal(v, &out); err != nil {
		return err
	}
	fmt.Printf("%# v\n", pretty.Formatter(out))
	return nil
}

func dropSpace(r rune) rune {
	if r == ' ' || r == '\t' || r == '\n' {
		return -1
	}
	return r
}
