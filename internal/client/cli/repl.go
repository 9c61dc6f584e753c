package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to.
type execIface interface {
	Create(ctx context.Context) error
	Read(ctx context.Context, args []string) error
	Attachment(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
	Sent(ctx context.Context) error
	Inbox(ctx context.Context) error
	WhoAmI(ctx context.Context) error
}

const helpText = "Available commands: create, read <id>, attachment <id>, status <id>, sent, inbox, whoami, exit"

// runREPL reads one command per line from reader and dispatches it to a.
// Handler errors are printed and the loop continues. It returns on EOF,
// "exit"/"quit" or when ctx is cancelled.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("sealpost %s> ", statusFn()))

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			printlnFn(helpText)

		case "create", "send":
			cmdErr = a.Create(ctx)

		case "read":
			cmdErr = a.Read(ctx, args)

		case "attachment", "download":
			cmdErr = a.Attachment(ctx, args)

		case "status":
			cmdErr = a.Status(ctx, args)

		case "sent":
			cmdErr = a.Sent(ctx)

		case "inbox":
			cmdErr = a.Inbox(ctx)

		case "whoami":
			cmdErr = a.WhoAmI(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("error:", cmdErr)
		}
	}
}
