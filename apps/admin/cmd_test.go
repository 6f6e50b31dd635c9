package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/odin/core/roster"
	inmemdb "github.com/trezcool/odin/storage/database/inmem"
)

func setup(t *testing.T) (*commandLine, roster.Repository) {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	repo := inmemdb.NewRosterRepository(db)

	// migrate only hands the handle to the (mocked) runner
	sqlDB := sqlx.NewDb(new(sql.DB), "postgres")
	return &commandLine{db: sqlDB, rosterRepo: repo}, repo
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, repo := setup(t)
	ctx := context.Background()

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "email but no name", args: []string{"adduser", "-email", "root@school.cd"}, wantErr: errHelp},
		{name: "unknown role", args: []string{"adduser", "-email", "root@school.cd", "-name", "Root", "-role", "lol"}, wantErr: errHelp},
		{name: "create", args: []string{"adduser", "-email", "Root@School.CD", "-name", "Root"}},
		{name: "update is idempotent", args: []string{"adduser", "-email", "root@school.cd", "-name", "Admin Root"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	usrs, err := repo.QueryUsers(ctx, nil, nil)
	if err != nil {
		t.Fatalf("QueryUsers() failed: %v", err)
	}
	if len(usrs) != 1 {
		t.Fatalf("len(users) = %v; want 1", len(usrs))
	}
	usr := usrs[0]
	if usr.Email != "root@school.cd" {
		t.Errorf("Email = %v; want root@school.cd", usr.Email)
	}
	if usr.Name != "Admin Root" {
		t.Errorf("Name = %v; want Admin Root", usr.Name)
	}
	if !usr.IsAdmin() {
		t.Errorf("Role = %v; want %v", usr.Role, roster.RoleAdmin)
	}
	if usr.IsActive == nil || !*usr.IsActive {
		t.Error("user should be active")
	}
}
