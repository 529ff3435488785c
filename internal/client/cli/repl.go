package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. *App satisfies it.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	CompleteProfile(ctx context.Context) error
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) error
	Open(ctx context.Context, path string) error
	Products(ctx context.Context, category string) error
	Filter(ctx context.Context, category string) error
	Show(ctx context.Context, id string) error
	Mine(ctx context.Context) error
	Add(ctx context.Context) error
	Edit(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Upload(ctx context.Context, productID, path string) error
	Avatar(ctx context.Context, path string) error
	Prices(ctx context.Context, crop string, limit int) error
}

const (
	helpGuest  = "Available commands: open, products, filter, show, prices, register, login, exit"
	helpMember = "Available commands: open, products, filter, show, prices, mine, add, edit, delete, upload, avatar, profile, whoami, logout, exit"
)

// usage describes commands that take arguments.
var usage = map[string]string{
	"open":   "Usage: open <path>",
	"show":   "Usage: show <product-id>",
	"edit":   "Usage: edit <product-id>",
	"delete": "Usage: delete <product-id>",
	"upload": "Usage: upload <product-id> <file>",
	"avatar": "Usage: avatar <file>",
	"filter": "Usage: filter <category> | filter clear",
}

// minArgs is the number of arguments a command needs.
var minArgs = map[string]int{
	"open":   1,
	"show":   1,
	"edit":   1,
	"delete": 1,
	"upload": 2,
	"avatar": 1,
	"filter": 1,
}

// runREPL reads commands from scanner and dispatches them to a until EOF or
// "exit". Handler errors are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("fm%s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if n, ok := minArgs[cmd]; ok && len(args) < n {
			printlnFn(usage[cmd])
			continue
		}

		var err error
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
		case "profile":
			err = a.CompleteProfile(ctx)
		case "logout":
			err = a.Logout(ctx)
		case "whoami":
			err = a.Whoami(ctx)

		case "open":
			err = a.Open(ctx, args[0])

		case "l", "products":
			err = a.Products(ctx, optionalArg(args, 0))
		case "filter":
			err = a.Filter(ctx, args[0])
		case "show":
			err = a.Show(ctx, args[0])
		case "mine":
			err = a.Mine(ctx)
		case "add":
			err = a.Add(ctx)
		case "edit":
			err = a.Edit(ctx, args[0])
		case "delete":
			err = a.Delete(ctx, args[0])

		case "upload":
			err = a.Upload(ctx, args[0], args[1])
		case "avatar":
			err = a.Avatar(ctx, args[0])

		case "prices":
			limit := 0
			if s := optionalArg(args, 1); s != "" {
				if _, scanErr := fmt.Sscanf(s, "%d", &limit); scanErr != nil {
					printlnFn("Usage: prices [crop] [limit]")
					continue
				}
			}
			err = a.Prices(ctx, optionalArg(args, 0), limit)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
