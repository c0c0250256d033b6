package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/useraccounts/internal/client/messages"
	"github.com/dmitrijs2005/useraccounts/internal/client/session"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	group() session.Group
	canShow(screen session.Screen) bool
	Login(ctx context.Context) error
	Register(ctx context.Context) error
	Home(ctx context.Context) error
	Refresh(ctx context.Context) error
	Edit(ctx context.Context) error
	Avatar(ctx context.Context, args []string) error
	GetAvatar(ctx context.Context, args []string) error
	Employees(ctx context.Context) error
	AddEmployee(ctx context.Context) error
	Toggle(ctx context.Context, args []string) error
	DeleteEmployee(ctx context.Context, args []string) error
	Logout(ctx context.Context) error
}

// commandScreens names the screen each command belongs to. A command runs
// only while its screen is reachable.
var commandScreens = map[string]session.Screen{
	"login":       session.Login,
	"register":    session.Register,
	"home":        session.Home,
	"refresh":     session.Home,
	"getavatar":   session.Home,
	"employees":   session.Home,
	"addemployee": session.Home,
	"toggle":      session.Home,
	"delete":      session.Home,
	"logout":      session.Home,
	"edit":        session.EditProfile,
	"avatar":      session.EditProfile,
}

const helpMain = "Comandos disponibles: home, refresh, edit, avatar <archivo>, getavatar <archivo>, " +
	"employees, addemployee, toggle <n>, delete <n>, logout, exit"

var helpTexts = map[session.Group]string{
	session.GroupSplash: "Cargando... (exit)",
	session.GroupAuth:   "Comandos disponibles: login, register, exit",
	session.GroupMain:   helpMain,
}

const (
	notAvailable   = "Comando no disponible en esta pantalla"
	unknownCommand = "Comando desconocido:"
	farewell       = "¡Hasta luego!"
)

// runREPL starts a simple read–eval–print loop for the accounts CLI.
//
// It reads a line from reader, parses the first token as the command and
// dispatches to methods on 'a'. Commands whose screen is not reachable in
// the current session state are refused. Errors from the handlers are shown
// as user messages and the loop goes on. The loop exits on EOF or when the
// user types "exit" or "quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("ua %s > ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if screen, ok := commandScreens[cmd]; ok && !a.canShow(screen) {
			printlnFn(notAvailable)
			continue
		}

		var cmdErr error
		switch cmd {
		case "help":
			printlnFn(helpTexts[a.group()])

		case "login":
			cmdErr = a.Login(ctx)

		case "register":
			cmdErr = a.Register(ctx)

		case "home":
			cmdErr = a.Home(ctx)

		case "refresh":
			cmdErr = a.Refresh(ctx)

		case "edit":
			cmdErr = a.Edit(ctx)

		case "avatar":
			cmdErr = a.Avatar(ctx, args)

		case "getavatar":
			cmdErr = a.GetAvatar(ctx, args)

		case "employees":
			cmdErr = a.Employees(ctx)

		case "addemployee":
			cmdErr = a.AddEmployee(ctx)

		case "toggle":
			cmdErr = a.Toggle(ctx, args)

		case "delete":
			cmdErr = a.DeleteEmployee(ctx, args)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "exit", "quit":
			printlnFn(farewell)
			return

		default:
			printlnFn(unknownCommand, cmd)
		}

		if cmdErr != nil {
			printlnFn(messages.For(cmdErr))
		}
	}
}
