package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for REPL output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL drives. App implements it;
// tests pass a stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Generate(ctx context.Context, args []string) error
	GenerateAndSave(ctx context.Context, args []string) error
	Save(ctx context.Context, args []string) error
	Download(ctx context.Context, args []string) error
	Saved(ctx context.Context) error
	Delete(ctx context.Context, args []string) error
	Fetch(ctx context.Context, args []string) error
	Community(ctx context.Context) error
}

const (
	helpGuest  = "Available commands: generate, download, community, login, register, saved, exit"
	helpMember = "Available commands: generate, gensave, save, download, saved, delete, fetch, community, whoami, logout, exit"
)

// runREPL reads commands from reader and dispatches them to a until EOF,
// "exit"/"quit", or ctx ending. Command errors are printed and the loop
// goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("cardgpt %s> ", statusFn()))

		line, err := readLine(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				printlnFn(errColor.Sprint(err))
			}
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpMember)
			} else {
				printlnFn(helpGuest)
			}

		case "register":
			err = a.Register(ctx)
		case "login":
			err = a.Login(ctx)
		case "logout":
			err = a.Logout(ctx)
		case "whoami":
			err = a.WhoAmI(ctx)

		case "g", "generate":
			err = a.Generate(ctx, args)
		case "gensave":
			err = a.GenerateAndSave(ctx, args)
		case "save":
			err = a.Save(ctx, args)
		case "download":
			err = a.Download(ctx, args)

		case "saved":
			err = a.Saved(ctx)
		case "delete":
			err = a.Delete(ctx, args)
		case "fetch":
			err = a.Fetch(ctx, args)
		case "community":
			err = a.Community(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn(errColor.Sprint(err))
		}
	}
}

// usageError reports wrong command arguments.
type usageError string

func (u usageError) Error() string {
	return "Usage: " + string(u)
}
