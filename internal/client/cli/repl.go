package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) error
	Feed(ctx context.Context) error
	More(ctx context.Context) error
	Mine(ctx context.Context) error
	NewPost(ctx context.Context) error
	EditPost(ctx context.Context, id string) error
	DeletePost(ctx context.Context, id string) error
	LikePost(ctx context.Context, id string) error
	Comment(ctx context.Context, id string) error
}

// runREPL starts a read–eval–print loop for the echofeed CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Commands taking a post id expect it as the first argument, e.g.
// "like 42f1…". Any errors returned by command handlers are ignored here;
// handlers log their own errors. This keeps the REPL loop resilient and
// focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("echofeed %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		needsID := func() (string, bool) {
			if len(args) == 0 {
				printlnFn("Usage:", cmd, "<post-id>")
				return "", false
			}
			return args[0], true
		}

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: (f)eed, more, mine, new, edit, rm, like, comment, whoami, logout, exit")
			} else {
				printlnFn("Available commands: register, login, (f)eed, more, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "whoami":
			_ = a.Whoami(ctx)

		case "f", "feed":
			_ = a.Feed(ctx)

		case "more":
			_ = a.More(ctx)

		case "mine":
			_ = a.Mine(ctx)

		case "new":
			_ = a.NewPost(ctx)

		case "edit":
			if id, ok := needsID(); ok {
				_ = a.EditPost(ctx, id)
			}

		case "rm":
			if id, ok := needsID(); ok {
				_ = a.DeletePost(ctx, id)
			}

		case "like":
			if id, ok := needsID(); ok {
				_ = a.LikePost(ctx, id)
			}

		case "comment":
			if id, ok := needsID(); ok {
				_ = a.Comment(ctx, id)
			}

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
