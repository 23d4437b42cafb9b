package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/trackit/core/account"
	"github.com/trezcool/trackit/core/outbox"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB
	accRepo    account.Repository
	relay      *outbox.Relay
	validate   *validator.Validate
	translator ut.Translator
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...) against the embedded migrations")
	fmt.Println("  adduser -email EMAIL -name NAME -role student|mentor|admin [-sap SAP_ID] - create or update an account")
	fmt.Println("  resetpassword -email EMAIL|SAP_ID - reset an account's password")
	fmt.Println("  importstudents -file FILE.csv - register the students listed in a csv file (name,email,sap_id[,password])")
	fmt.Println("  relay [-once] - deliver pending outbox events")
}

// promptPassword reads a password from the terminal without echoing it.
func promptPassword(usage func()) (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The account's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The account holder's full name.")
	addUserRole := addUserCmd.String("role", "", "One of student, mentor, admin.")
	addUserSAP := addUserCmd.String("sap", "", "The student's SAP ID (optional).")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordIdent := resetPasswordCmd.String("email", "", "The account's email or SAP ID. The password will be prompted next.")

	importCmd := flag.NewFlagSet("importstudents", flag.ContinueOnError)
	importFile := importCmd.String("file", "", "Path of the csv file; the header row names the columns.")

	relayCmd := flag.NewFlagSet("relay", flag.ContinueOnError)
	relayOnce := relayCmd.Bool("once", false, "Process a single batch and exit.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserName == "" || *addUserRole == "" {
			addUserCmd.Usage()
			return errHelp
		}
		role, err := account.ParseRole(*addUserRole)
		if err != nil {
			return err
		}
		pwd, err := promptPassword(addUserCmd.Usage)
		if err != nil {
			return err
		}
		return cli.addUser(*addUserName, *addUserEmail, *addUserSAP, role, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordIdent == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(resetPasswordCmd.Usage)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordIdent, pwd)

	case "importstudents":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importFile == "" {
			importCmd.Usage()
			return errHelp
		}
		f, err := os.Open(*importFile)
		if err != nil {
			return err
		}
		//goland:noinspection GoUnhandledErrorResult
		defer f.Close()

		res, err := cli.importStudents(f)
		if err != nil {
			return err
		}
		fmt.Printf("%d students imported, %d skipped\n", len(res.Created), len(res.Skipped))
		for _, s := range res.Skipped {
			fmt.Printf("  line %d (%s): %s\n", s.Line, s.Email, s.Reason)
		}
		return nil

	case "relay":
		if err := relayCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *relayOnce {
			sent, failed, err := cli.relay.ProcessOnce(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("%d events sent, %d failed for good\n", sent, failed)
			return nil
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cli.relay.Run(ctx)
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}
