package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/xelth-com/dmrelay/internal/client"
	"github.com/xelth-com/dmrelay/internal/websocket"
)

// Minimal terminal client for poking at a running relay:
//
//	chat -server http://localhost:4000 -token $(mktoken -user alice) -user alice -to bob
//
// Lines are sent as messages; /ephemeral on|off toggles the
// conversation, /to switches peer, /who prints the roster.
func main() {
	server := flag.String("server", "http://localhost:4000", "relay base URL")
	token := flag.String("token", "", "session token (see cmd/mktoken)")
	user := flag.String("user", "", "own user id (must match the token)")
	peer := flag.String("to", "", "peer user id")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	if *token == "" || *user == "" {
		fmt.Fprintln(os.Stderr, "usage: chat -server <url> -token <jwt> -user <id> [-to <peer>]")
		os.Exit(2)
	}

	handlers := &client.Handlers{
		OnMessage: func(msg websocket.Message) {
			tag := ""
			if msg.Ephemeral {
				tag = " (ephemeral)"
			}
			fmt.Printf("%s -> %s%s: %s\n", msg.From, msg.To, tag, msg.Content)
		},
		OnRoster: func(online []string, _ int) {
			fmt.Printf("online: %s\n", strings.Join(online, ", "))
		},
		OnTyping: func(from string, isTyping bool) {
			if isTyping {
				fmt.Printf("%s is typing...\n", from)
			}
		},
		OnEphemeral: func(with string, enabled bool) {
			fmt.Printf("ephemeral mode with %s: %v\n", with, enabled)
		},
	}

	c, err := client.Dial(context.Background(), *server, *token, *user, handlers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	to := *peer
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue

		case strings.HasPrefix(line, "/to "):
			to = strings.TrimSpace(strings.TrimPrefix(line, "/to "))
			fmt.Printf("now talking to %s\n", to)

		case line == "/who":
			online, n := c.Roster()
			fmt.Printf("online (%d): %s\n", n, strings.Join(online, ", "))

		case strings.HasPrefix(line, "/ephemeral"):
			enabled := strings.HasSuffix(line, "on")
			if err := c.ToggleEphemeral(to, enabled); err != nil {
				fmt.Fprintf(os.Stderr, "toggle: %v\n", err)
			}

		default:
			if to == "" {
				fmt.Fprintln(os.Stderr, "no peer selected, use /to <id>")
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_, err := c.Send(ctx, to, line, nil)
			cancel()
			if err != nil {
				fmt.Fprintf(os.Stderr, "send: %v\n", err)
			}
		}
	}
}
