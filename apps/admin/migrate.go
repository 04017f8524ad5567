package main

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return runMigrationsFunc(cli.db, cli.conf.Database.Engine, args[0], arguments...)
}
