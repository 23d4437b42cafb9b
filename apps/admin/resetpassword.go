package main

import (
	"context"
	"strings"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/account"
)

// resetPassword sets a new password on the account identified by an email or a SAP ID.
func (cli *commandLine) resetPassword(ident, pwd string) error {
	ctx := context.Background()
	filter := account.GetFilter{SAPID: core.CleanString(ident)}
	if strings.Contains(ident, "@") {
		filter = account.GetFilter{Email: core.CleanString(ident, true /* lower */)}
	}

	acc, err := cli.accRepo.GetAccount(ctx, filter)
	if err != nil {
		return err
	}
	if err := acc.SetPassword(pwd); err != nil {
		return err
	}
	acc.UpdatedAt = core.NowFunc()
	if _, err := cli.accRepo.UpdateAccount(ctx, acc); err != nil {
		return err
	}
	return nil
}
