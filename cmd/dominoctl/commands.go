package main

import (
	"context"
	"strings"

	"domino-community/internal/community"
	"domino-community/internal/player"
	"domino-community/internal/shared/errors"

	"github.com/docopt/docopt-go"
)

func signUp(ctx context.Context, env *environment, opts docopt.Opts) error {
	name, _ := opts.String("--name")
	email, _ := opts.String("--email")
	password, _ := opts.String("--password")

	if err := env.app.Session.SignUp(ctx, name, email, password); err != nil {
		return err
	}
	return whoami(ctx, env, opts)
}

func login(ctx context.Context, env *environment, opts docopt.Opts) error {
	email, _ := opts.String("--email")
	password, _ := opts.String("--password")

	if err := env.app.Session.SignIn(ctx, email, password); err != nil {
		return err
	}
	return whoami(ctx, env, opts)
}

func logout(ctx context.Context, env *environment, opts docopt.Opts) error {
	if err := env.app.Session.SignOut(ctx); err != nil {
		return err
	}
	Out.Printf("Signed out")
	return nil
}

func whoami(ctx context.Context, env *environment, opts docopt.Opts) error {
	identity, err := env.app.Session.RequireIdentity()
	if err != nil {
		Err.Printf("%s", errors.Message(err))
		return err
	}
	Out.Printf("%s <%s> %s", identity.Name, identity.Email, identity.Role)
	return nil
}

func communities(ctx context.Context, env *environment, opts docopt.Opts) error {
	screen := env.app.CommunitiesScreen()
	if err := screen.List.Fetch(ctx); err != nil {
		return err
	}
	if search, err := opts.String("--search"); err == nil {
		screen.List.SetFilter(search)
	}

	items := screen.List.FilteredView()
	if len(items) == 0 {
		Out.Printf("No communities yet")
		return nil
	}
	for _, c := range items {
		Out.Printf("%s  %-24s %-12s %s", c.ID, c.Name, c.MembersLabel(), c.CreatorEmail)
	}
	return nil
}

func discover(ctx context.Context, env *environment, opts docopt.Opts) error {
	screen := env.app.DiscoverScreen()
	defer screen.Close()

	if err := screen.List.Fetch(ctx); err != nil {
		return err
	}
	if _, set := opts["--max_distance"].(string); set {
		maxKm, err := opts.Float64("--max_distance")
		if err != nil || maxKm < 1 || maxKm > 100 {
			Err.Printf("--max_distance must be a number between 1 and 100")
			return errors.Validation("invalid max distance")
		}
		screen.Distance.OnChange(maxKm)
		screen.Distance.Flush()
	}

	items := screen.List.FilteredView()
	Out.Printf("%d communities within %.0f km", len(items), screen.List.Filter())
	for _, c := range items {
		Out.Printf("%s  %-24s %6.1f km", c.ID, c.Name, *c.DistanceKm)
	}
	return nil
}

func players(ctx context.Context, env *environment, opts docopt.Opts) error {
	screen := env.app.PlayersScreen()
	defer screen.Close()

	if err := screen.List.Fetch(ctx); err != nil {
		return err
	}
	if search, err := opts.String("--search"); err == nil {
		screen.Search.OnChange(search)
		screen.Search.Flush()
	}

	items := screen.List.FilteredView()
	if len(items) == 0 {
		Out.Printf("No players found")
		return nil
	}
	for _, p := range items {
		printPlayer(p)
	}
	return nil
}

func printPlayer(p player.Player) {
	Out.Printf("%s  %-28s %-14s %3d played %3d won %5.1f%%  %s",
		p.ID, p.DisplayName(), p.Phone, p.GamesPlayed, p.GamesWon, p.WinRate(),
		strings.Join(p.Communities, ", "))
}

func communityDetails(ctx context.Context, env *environment, opts docopt.Opts) error {
	id, _ := opts.String("<community_id>")

	screen := env.app.CommunityDetailsScreen(community.DetailsParams{CommunityID: id})
	if err := screen.Fetch(ctx); err != nil {
		return err
	}

	details := screen.Snapshot().Details
	Out.Printf("%s (%d members)", details.Name, details.MemberCount)
	if details.Description != nil {
		Out.Printf("%s", *details.Description)
	}
	if details.WhatsAppGroupID != nil {
		Out.Printf("WhatsApp: %s", *details.WhatsAppGroupID)
	}
	if len(details.Competitions) == 0 {
		Out.Printf("No competitions yet")
		return nil
	}
	for _, c := range details.Competitions {
		Out.Printf("  %s  %-24s %s  %s", c.ID, c.Name, c.StartDate.Format("2006-01-02"), c.Status.Label())
	}
	return nil
}

func createCommunity(ctx context.Context, env *environment, opts docopt.Opts) error {
	screen := env.app.CreateCommunityScreen(func(_ context.Context, c *community.Community) {
		Out.Printf("%s  %s", c.ID, c.Name)
	})

	setString(screen.Form.SetField, opts, "--name", "name")
	setString(screen.Form.SetField, opts, "--description", "description")
	setString(screen.Form.SetField, opts, "--whatsapp", "whatsapp_group_id")
	for flag, field := range map[string]string{"--latitude": "latitude", "--longitude": "longitude"} {
		if _, set := opts[flag].(string); !set {
			continue
		}
		v, err := opts.Float64(flag)
		if err != nil {
			Err.Printf("%s must be a number", flag)
			return errors.Validationf("invalid %s", field)
		}
		screen.Form.SetField(field, v)
	}

	_, err := screen.Form.Submit(ctx)
	return err
}

func addPlayer(ctx context.Context, env *environment, opts docopt.Opts) error {
	screen := env.app.PlayersScreen()
	defer screen.Close()

	setString(screen.Form.SetField, opts, "--name", "name")
	setString(screen.Form.SetField, opts, "--phone", "phone")
	setString(screen.Form.SetField, opts, "--nickname", "nickname")
	if ids, ok := opts["--community"].([]string); ok {
		for _, id := range ids {
			screen.Form.Toggle("communities", id)
		}
	}

	created, err := screen.Form.Submit(ctx)
	if err != nil {
		return err
	}
	printPlayer(*created)
	return nil
}

func setString(set func(string, any), opts docopt.Opts, flag, field string) {
	if v, err := opts.String(flag); err == nil {
		set(field, v)
	}
}

