package cli

import (
	"context"

	"github.com/dmitrijs2005/cardgpt/internal/client/coordinator"
	"github.com/dmitrijs2005/cardgpt/internal/common"
)

// getSimpleText, getPassword and confirm are swapped in tests.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
	confirm       = Confirm
)

// Register asks for an email, a username and a password and creates the
// account. It does not log in.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email (optional)", a.out)
	if err != nil {
		return err
	}
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.coord.Register(ctx, email, username, string(password)); err != nil {
		return err
	}

	a.success("%s", a.coord.Notice())
	return nil
}

// Login asks for a username or email and a password.
func (a *App) Login(ctx context.Context) error {
	identifier, err := getSimpleText(a.reader, "Enter username or email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.coord.Login(ctx, identifier, string(password)); err != nil {
		return err
	}

	a.success("Logged in as %s.", a.coord.Identity().Username)
	if a.coord.Panel() == coordinator.PanelSaved {
		a.printSaved()
	}
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.coord.Logout(ctx)
	a.say("%s", a.coord.Notice())
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	id := a.coord.Identity()
	if !id.Authenticated {
		a.say("Not logged in.")
		return nil
	}
	if id.Email != "" {
		a.say("%s <%s>", id.Username, id.Email)
	} else {
		a.say("%s", id.Username)
	}
	return nil
}
