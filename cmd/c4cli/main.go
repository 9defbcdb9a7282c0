// Command c4cli is a terminal client for the Connect Four server.
//
// It has four subcommands:
//  1. "play": play interactively over the websocket gateway
//  2. "bot": let a simple strategy play one or more matches over the REST API
//  3. "matches": list recently finished matches with per-player totals
//  4. "check": verify that a board drawn in a text file is a reachable position
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "c4cli",
		Usage:   "Play Connect Four from the terminal",
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Value:   "http://localhost:8080",
				Usage:   "server base URL",
				Sources: cli.EnvVars("CONNECTFOUR_SERVER"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "identity token issued by POST /api/tokens",
				Sources: cli.EnvVars("CONNECTFOUR_TOKEN"),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "give up after this long (0 waits forever)",
			},
		},
		Commands: []*cli.Command{
			playCommand(),
			botCommand(),
			matchesCommand(),
			checkCommand(),
		},
	}
}

func withTimeout(ctx context.Context, cmd *cli.Command) (context.Context, context.CancelFunc) {
	if d := cmd.Duration("timeout"); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func playCommand() *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Create or join a room and play interactively",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "player", Aliases: []string{"p"}, Usage: "your player name", Required: true},
			&cli.StringFlag{Name: "room", Aliases: []string{"r"}, Usage: "room code to join (creates a room when empty)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, cancel := withTimeout(ctx, cmd)
			defer cancel()

			in := cmd.Root().Reader
			if in == nil {
				in = os.Stdin
			}
			out := output(cmd)
			fmt.Fprint(out, helpText)

			return RunPlay(ctx, PlayOptions{
				Server: cmd.String("server"),
				Player: cmd.String("player"),
				Token:  cmd.String("token"),
				Room:   cmd.String("room"),
			}, in, out)
		},
	}
}

func botCommand() *cli.Command {
	return &cli.Command{
		Name:  "bot",
		Usage: "Play matches automatically over the REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "player", Aliases: []string{"p"}, Value: "bot", Usage: "bot player name"},
			&cli.StringFlag{Name: "room", Aliases: []string{"r"}, Usage: "room code to join (creates a room when empty)"},
			&cli.IntFlag{Name: "games", Aliases: []string{"n"}, Value: 1, Usage: "matches to play before leaving"},
			&cli.DurationFlag{Name: "poll", Value: 200 * time.Millisecond, Usage: "interval between room polls"},
			&cli.DurationFlag{Name: "delay", Usage: "pause before each move"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, cancel := withTimeout(ctx, cmd)
			defer cancel()

			api := NewAPIClient(cmd.String("server"), cmd.String("token"))
			_, err := RunBot(ctx, api, BotOptions{
				Player: cmd.String("player"),
				Room:   cmd.String("room"),
				Games:  cmd.Int("games"),
				Poll:   cmd.Duration("poll"),
				Delay:  cmd.Duration("delay"),
			}, output(cmd))
			return err
		},
	}
}

func matchesCommand() *cli.Command {
	return &cli.Command{
		Name:  "matches",
		Usage: "List recently finished matches",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "matches to fetch"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, cancel := withTimeout(ctx, cmd)
			defer cancel()

			api := NewAPIClient(cmd.String("server"), cmd.String("token"))
			records, err := api.RecentMatches(ctx, cmd.Int("limit"))
			if err != nil {
				return err
			}
			printMatches(output(cmd), records)
			return nil
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Check that a board file is a reachable position",
		ArgsUsage: "FILE (- for stdin)",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("expected exactly one board file")
			}

			var data []byte
			var err error
			if name := cmd.Args().First(); name == "-" {
				in := cmd.Root().Reader
				if in == nil {
					in = os.Stdin
				}
				data, err = io.ReadAll(in)
			} else {
				data, err = os.ReadFile(name)
			}
			if err != nil {
				return err
			}

			report, err := CheckBoard(string(data))
			if err != nil {
				return fmt.Errorf("invalid board: %w", err)
			}
			printReport(output(cmd), report)
			return nil
		},
	}
}
