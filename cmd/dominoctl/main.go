package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"domino-community/internal/shared/config"
	"domino-community/internal/shared/logger"

	"github.com/docopt/docopt-go"
)

const DominoCtlVersion = "0.1.0"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", 0)
}

func main() {
	usage := `Domino community control.

The backend, session store and discover origin come from the environment
(or a .env file). See BACKEND_MODE, SUPABASE_URL, SESSION_STORE and UI_*.

Usage:
    dominoctl signup --name=<name> --email=<email> --password=<password>
    dominoctl login --email=<email> --password=<password>
    dominoctl logout
    dominoctl whoami
    dominoctl communities [--search=<text>]
    dominoctl discover [--max_distance=<km>]
    dominoctl players [--search=<text>]
    dominoctl community <community_id>
    dominoctl create-community --name=<name>
        [--description=<text>]
        [--whatsapp=<group_id>]
        [--latitude=<lat> --longitude=<lng>]
    dominoctl add-player --name=<name> --phone=<phone>
        [--nickname=<nickname>]
        [--community=<community_id>...]
    dominoctl migrate
    dominoctl -h | --help
    dominoctl --version

Options:
    -h --help                    Show this screen.
    --version                    Show version.
    --name=<name>
    --email=<email>
    --password=<password>
    --search=<text>              Only show entries whose name contains this text.
    --max_distance=<km>          Discover radius in km, 1 to 100.
    --description=<text>
    --whatsapp=<group_id>        WhatsApp group of the community.
    --latitude=<lat>
    --longitude=<lng>
    --phone=<phone>
    --nickname=<nickname>
    --community=<community_id>   Community to add the player to. Repeatable.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], DominoCtlVersion)
	if err != nil {
		panic(err)
	}

	if err := config.Init(); err != nil {
		Err.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if migrate_, _ := opts.Bool("migrate"); migrate_ {
		if err := migrate(ctx, config.GlobalConfig); err != nil {
			Err.Fatalf("Migration failed: %v", err)
		}
		return
	}

	env, err := connect(ctx, config.GlobalConfig)
	if err != nil {
		Err.Fatalf("Failed to start: %v", err)
	}
	defer env.Close()

	if err := run(ctx, env, opts); err != nil {
		env.Close()
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, env *environment, opts docopt.Opts) error {
	commands := []struct {
		name string
		fn   func(context.Context, *environment, docopt.Opts) error
	}{
		{"signup", signUp},
		{"login", login},
		{"logout", logout},
		{"whoami", whoami},
		{"communities", communities},
		{"discover", discover},
		{"players", players},
		{"community", communityDetails},
		{"create-community", createCommunity},
		{"add-player", addPlayer},
	}

	for _, c := range commands {
		if selected, _ := opts.Bool(c.name); selected {
			return c.fn(ctx, env, opts)
		}
	}
	return fmt.Errorf("no command selected")
}
