package main

import (
	"context"
	"encoding/csv"
	"io"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/trackit/core"
	"github.com/trezcool/trackit/core/account"
)

var errMissingColumns = errors.New("csv header must name the name, email and sap_id columns")

type skippedRow struct {
	Line   int
	Email  string
	Reason string
}

type importResult struct {
	Created []account.Account
	Skipped []skippedRow
}

// importStudents registers one student per csv record. The header row names the columns: name, email, sap_id and an
// optional password, held to the same policy as sign ups. Students imported without a password have to go through
// the password reset flow.
// Invalid rows and rows clashing with existing accounts are skipped.
func (cli *commandLine) importStudents(r io.Reader) (importResult, error) {
	var res importResult
	ctx := context.Background()

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return res, errors.Wrap(err, "reading csv header")
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[core.CleanString(h, true /* lower */)] = i
	}
	for _, required := range []string{"name", "email", "sap_id"} {
		if _, ok := cols[required]; !ok {
			return res, errMissingColumns
		}
	}
	field := func(record []string, col string) string {
		i, ok := cols[col]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, errors.Wrapf(err, "reading line %d", line)
		}

		name := core.CleanString(field(record, "name"))
		email := core.CleanString(field(record, "email"), true /* lower */)
		sapID := core.CleanString(field(record, "sap_id"))
		pwd := field(record, "password")
		skip := func(reason string) {
			res.Skipped = append(res.Skipped, skippedRow{Line: line, Email: email, Reason: reason})
		}

		if name == "" || email == "" {
			skip("name and email are required")
			continue
		}
		if _, err = mail.ParseAddress(email); err != nil {
			skip("invalid email address")
			continue
		}
		if strings.TrimSpace(pwd) != "" {
			na := account.NewAccount{Name: name, Email: email, SAPID: sapID, Role: account.RoleStudent, Password: pwd, PasswordConfirm: pwd}
			if err = core.ValidateStruct(cli.validate, cli.translator, na); err != nil {
				if !core.IsValidationError(err) {
					return res, err
				}
				skip(err.Error())
				continue
			}
		}
		if err = cli.accRepo.CheckUniqueness(ctx, email, sapID, nil); err != nil {
			if err == account.ErrEmailExists || err == account.ErrSAPIDExists {
				skip(err.Error())
				continue
			}
			return res, err
		}

		now := core.NowFunc()
		acc := account.Account{
			ID:        uuid.New().String(),
			Name:      name,
			Email:     email,
			SAPID:     sapID,
			Role:      account.RoleStudent,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if strings.TrimSpace(pwd) != "" {
			if err = acc.SetPassword(pwd); err != nil {
				return res, err
			}
		}
		if acc, err = cli.accRepo.CreateAccount(ctx, acc); err != nil {
			return res, errors.Wrapf(err, "creating %s", email)
		}
		res.Created = append(res.Created, acc)
	}
	return res, nil
}
