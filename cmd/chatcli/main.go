// Command chatcli is a terminal client for the chat server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"

	"github.com/pliu/chatapp/internal/chatclient"
	"github.com/pliu/chatapp/internal/logger"
	"github.com/pliu/chatapp/internal/models"
)

const usage = `usage: chatcli [-server URL] [-token TOKEN] <command> [flags]

commands:
  login   -email E -password P   print a session token
  users                          list users with unseen counts
  history -with ID               print the conversation with a user
  send    -to ID -text T         send a message
  listen  [-with ID]             print incoming messages until interrupted
`

type cliConfig struct {
	Server   string `env:"CHATTY_SERVER" envDefault:"http://localhost:5000"`
	Token    string `env:"CHATTY_TOKEN"`
	LogLevel string `env:"LOG_LEVEL"     envDefault:"warn"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "chatcli:", err)
		}
		os.Exit(1)
	}
}

func parseConfig(args []string, stderr io.Writer) (cliConfig, []string, error) {
	var cfg cliConfig
	if err := env.Parse(&cfg); err != nil {
		return cliConfig{}, nil, fmt.Errorf("parse env: %w", err)
	}
	fs := flag.NewFlagSet("chatcli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	fs.StringVar(&cfg.Server, "server", cfg.Server, "chat server base URL")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "session token")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	if err := fs.Parse(args); err != nil {
		return cliConfig{}, nil, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return cliConfig{}, nil, errors.New("missing command")
	}
	return cfg, fs.Args(), nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, rest, err := parseConfig(args, stderr)
	if err != nil {
		return err
	}
	logg, err := logger.New(cfg.LogLevel, "console")
	if err != nil {
		return err
	}
	defer logg.Sync()

	api := chatclient.NewAPI(cfg.Server, cfg.Token)
	cmd, cmdArgs := rest[0], rest[1:]
	if cmd != "login" && cfg.Token == "" {
		return errors.New("no token: run login and set CHATTY_TOKEN or -token")
	}

	switch cmd {
	case "login":
		return login(ctx, api, cmdArgs, stdout)
	case "users":
		return users(ctx, api, stdout)
	case "history":
		return history(ctx, api, cmdArgs, stdout)
	case "send":
		return send(ctx, api, cmdArgs, stdout)
	case "listen":
		return listen(ctx, api, cfg, logg, cmdArgs, stdout, stderr)
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func login(ctx context.Context, api *chatclient.API, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	token, user, err := api.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	if user != nil {
		fmt.Fprintf(stdout, "logged in as %s (%s)\n", user.FullName, user.ID)
	}
	fmt.Fprintln(stdout, token)
	return nil
}

func users(ctx context.Context, api *chatclient.API, stdout io.Writer) error {
	list, unseen, err := api.GetUsers(ctx)
	if err != nil {
		return err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].FullName < list[j].FullName })
	for _, u := range list {
		if n := unseen[u.ID]; n > 0 {
			fmt.Fprintf(stdout, "%s  %s  (%d unseen)\n", u.ID, u.FullName, n)
			continue
		}
		fmt.Fprintf(stdout, "%s  %s\n", u.ID, u.FullName)
	}
	return nil
}

// names maps user ids to display names for printing.
func names(ctx context.Context, api *chatclient.API) map[string]string {
	list, _, err := api.GetUsers(ctx)
	out := make(map[string]string, len(list))
	if err != nil {
		return out
	}
	for _, u := range list {
		out[u.ID] = u.FullName
	}
	return out
}

func printMessage(w io.Writer, m models.Message, names map[string]string) {
	sender, ok := names[m.SenderID]
	if !ok {
		sender = "me"
	}
	body := m.Text
	if m.Image != "" {
		if body != "" {
			body += " "
		}
		body += "[image " + m.Image + "]"
	}
	fmt.Fprintf(w, "[%s] %s: %s\n", chatclient.FormatMessageTime(m.CreatedAt), sender, body)
}

func history(ctx context.Context, api *chatclient.API, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	with := fs.String("with", "", "user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *with == "" {
		return errors.New("history: -with is required")
	}
	messages, err := api.GetMessages(ctx, *with)
	if err != nil {
		return err
	}
	nm := names(ctx, api)
	for _, m := range messages {
		printMessage(stdout, m, nm)
	}
	return nil
}

func send(ctx context.Context, api *chatclient.API, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	to := fs.String("to", "", "receiver user id")
	text := fs.String("text", "", "message text")
	image := fs.String("image", "", "image URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *to == "" {
		return errors.New("send: -to is required")
	}
	msg, err := api.SendMessage(ctx, *to, chatclient.MessageInput{Text: *text, Image: *image})
	if err != nil {
		return err
	}
	printMessage(stdout, *msg, nil)
	return nil
}

type writerNotifier struct {
	w io.Writer
}

func (n writerNotifier) Error(message string) {
	fmt.Fprintln(n.w, "error:", message)
}

func listen(ctx context.Context, api *chatclient.API, cfg cliConfig, logg *zap.Logger, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("listen", flag.ContinueOnError)
	with := fs.String("with", "", "open the conversation with this user id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	socket, err := chatclient.Dial(ctx, cfg.Server, cfg.Token)
	if err != nil {
		return err
	}
	defer socket.Close()

	chat := chatclient.New(api, socket, writerNotifier{w: stderr}, logg)
	chat.GetUsers(ctx)
	nm := make(map[string]string)
	var selected *models.User
	for _, u := range chat.Users() {
		nm[u.ID] = u.FullName
		if u.ID == *with {
			selected = &u
		}
	}
	if *with != "" && selected == nil {
		return fmt.Errorf("listen: unknown user %q", *with)
	}

	if selected != nil {
		chat.SetSelectedUser(ctx, selected)
		for _, m := range chat.Messages() {
			printMessage(stdout, m, nm)
		}
	} else {
		chat.Subscribe()
	}

	printed := len(chat.Messages())
	unseen := chat.Unseen()
	chat.Changed = func() {
		messages := chat.Messages()
		if printed > len(messages) {
			printed = 0
		}
		for _, m := range messages[printed:] {
			printMessage(stdout, m, nm)
		}
		printed = len(messages)

		current := chat.Unseen()
		for id, n := range current {
			if n > unseen[id] {
				name := nm[id]
				if name == "" {
					name = id
				}
				fmt.Fprintf(stdout, "* %d unseen from %s\n", n, name)
			}
		}
		unseen = current
	}

	err = socket.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
