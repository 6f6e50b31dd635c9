package main

import (
	"context"
	"time"

	"github.com/trezcool/odin/core"
	"github.com/trezcool/odin/core/roster"
)

// addUser updates or creates a roster.User
func (cli *commandLine) addUser(email, name, role string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)
	role = core.CleanString(role, true /* lower */)

	if roster.RolePriority(role) == 0 {
		return errHelp
	}

	now := time.Now().UTC()
	usr, err := cli.rosterRepo.GetUser(ctx, roster.GetFilter{Email: email})
	if err != nil {
		if err != roster.ErrNotFound {
			return err
		}
		usr = roster.User{
			Name:      name,
			Email:     email,
			Role:      role,
			CreatedAt: now,
			UpdatedAt: now,
		}
		usr.SetActive(true)
		_, err = cli.rosterRepo.CreateUser(ctx, usr)
		return err
	}

	usr.Name = name
	usr.UpdatedAt = now
	usr.SetActive(true)
	_, err = cli.rosterRepo.UpdateUser(ctx, usr)
	return err
}
