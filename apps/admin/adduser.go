package main

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/account"
)

// addUser updates or creates an active account.Account
func (cli *commandLine) addUser(name, email, sapID string, role account.Role, pwd string) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)
	sapID = core.CleanString(sapID)

	acc, err := cli.accRepo.GetAccount(ctx, account.GetFilter{Email: email})
	exists := err == nil
	if err != nil {
		if err != account.ErrNotFound {
			return err
		}
		now := core.NowFunc()
		acc = account.Account{
			ID:        uuid.New().String(),
			Email:     email,
			CreatedAt: now,
		}
	}

	var excluded []account.Account
	if exists {
		excluded = append(excluded, acc)
	}
	if err = cli.accRepo.CheckUniqueness(ctx, email, sapID, excluded); err != nil {
		return err
	}

	acc.Name = name
	acc.SAPID = sapID
	acc.Role = role
	acc.IsActive = true
	acc.UpdatedAt = core.NowFunc()
	if err = acc.SetPassword(pwd); err != nil {
		return err
	}

	if exists {
		_, err = cli.accRepo.UpdateAccount(ctx, acc)
	} else {
		_, err = cli.accRepo.CreateAccount(ctx, acc)
	}
	return err
}
