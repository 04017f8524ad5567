package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/seta/core"
	"github.com/trezcool/seta/core/fundingwindow"
	"github.com/trezcool/seta/storage/database"
)

var (
	readPasswordFunc  = term.ReadPassword      // mockable
	runMigrationsFunc = database.RunMigrations // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf   *core.Config
	db     *sqlx.DB
	svc    fundingwindow.ServiceInterface
	stdout io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.stdout, "Usage:")
	fmt.Fprintln(cli.stdout, "  validate -file FORM.yaml - check a funding window form without submitting it")
	fmt.Fprintln(cli.stdout, "  submit -file FORM.yaml -actor ID [-username NAME] [-email EMAIL] - create the funding window and its programmes; the API token is prompted")
	fmt.Fprintln(cli.stdout, "  journal [-actor ID] [-agreement ID] [-success true|false] [-ordering FIELDS] - list past submissions")
	fmt.Fprintln(cli.stdout, "  migrate COMMAND [ARGS...] - run a database migration command (up, down, status, ...)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	validateCmd := flag.NewFlagSet("validate", flag.ContinueOnError)
	validateFile := validateCmd.String("file", "", "The funding window form, as YAML.")

	submitCmd := flag.NewFlagSet("submit", flag.ContinueOnError)
	submitFile := submitCmd.String("file", "", "The funding window form, as YAML.")
	submitActor := submitCmd.String("actor", "", "The administrator id the records are created for.")
	submitUsername := submitCmd.String("username", "", "The administrator's name, for the receipt.")
	submitEmail := submitCmd.String("email", "", "Where to send the receipt. No receipt when empty.")

	journalCmd := flag.NewFlagSet("journal", flag.ContinueOnError)
	journalActor := journalCmd.String("actor", "", "Only the submissions of this administrator.")
	journalAgreement := journalCmd.String("agreement", "", "Only the submissions of this agreement.")
	journalSuccess := journalCmd.String("success", "", "Only successful (true) or failed (false) submissions.")
	journalOrdering := journalCmd.String("ordering", "-created_at", "Comma separated fields, `-` prefix for descending.")

	for _, fs := range []*flag.FlagSet{validateCmd, submitCmd, journalCmd} {
		fs.SetOutput(cli.stdout)
	}

	switch args[1] {
	case "validate":
		if err := validateCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *validateFile == "" {
			validateCmd.Usage()
			return errHelp
		}
		return cli.validate(*validateFile)
	case "submit":
		if err := submitCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *submitFile == "" || *submitActor == "" {
			submitCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.stdout, "Enter API token:")
		token, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.stdout)
		if err != nil {
			return err
		}
		if len(token) == 0 {
			submitCmd.Usage()
			return errHelp
		}
		sess := core.Session{
			ActorID:     core.CleanString(*submitActor),
			Username:    core.CleanString(*submitUsername),
			Email:       core.CleanString(*submitEmail, true /* lower */),
			Credentials: string(token),
		}
		return cli.submit(*submitFile, sess)
	case "journal":
		if err := journalCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.journal(*journalActor, *journalAgreement, *journalSuccess, *journalOrdering)
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}
