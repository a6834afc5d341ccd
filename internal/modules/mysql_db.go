// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/go-sql-driver/mysql"

	"github.com/anvil-sh/anvil/internal/anverr"
	"github.com/anvil-sh/anvil/internal/module"
	"github.com/anvil-sh/anvil/internal/vars"
)

// MySQLDB manages the existence of a single database (original_source's
// mysql_db.rs) over database/sql and the mysql driver instead of shelling
// out to the mysql(1) CLI: dump is the only operation still left to a
// subprocess, since mysqldump's output format isn't reproducible as a
// single query.
type MySQLDB struct{}

func init() { module.Register(MySQLDB{}) }

func (MySQLDB) Name() string              { return "mysql_db" }
func (MySQLDB) ForceStringOnParams() bool { return true }

type mysqlDBParams struct {
	Name      string `yaml:"name" validate:"required"`
	State     string `yaml:"state" validate:"omitempty,oneof=present absent dump import"`
	Encoding  string `yaml:"encoding"`
	Collation string `yaml:"collation"`
	Target    string `yaml:"target"`
	LoginHost string `yaml:"login_host"`
	LoginUser string `yaml:"login_user"`
	LoginPass string `yaml:"login_password"`
}

func (MySQLDB) Exec(ctx module.Context) (module.Result, vars.Vars, error) {
	var p mysqlDBParams
	if err := module.DecodeParams(ctx.Params, &p, true); err != nil {
		return module.Result{}, nil, err
	}
	if p.State == "" {
		p.State = "present"
	}
	if p.Encoding == "" {
		p.Encoding = "utf8"
	}
	if p.LoginHost == "" {
		p.LoginHost = "localhost"
	}

	db, err := sql.Open("mysql", mysqlDSN(p))
	if err != nil {
		return module.Result{}, nil, anverr.Wrap(anverr.SubprocessFail, err, "opening mysql connection")
	}
	defer db.Close()

	switch p.State {
	case "dump":
		if p.Target == "" {
			return module.Result{}, nil, anverr.New(anverr.InvalidData, "target is required when state=dump")
		}
		if ctx.CheckMode {
			return module.Result{Changed: true, Output: p.Target}, nil, nil
		}
		args := []string{"--host=" + p.LoginHost}
		if p.LoginUser != "" {
			args = append(args, "--user="+p.LoginUser)
		}
		if p.LoginPass != "" {
			args = append(args, "--password="+p.LoginPass)
		}
		args = append(args, "--single-transaction", "--quick", "--result-file", p.Target, p.Name)
		res, runErr := RunCommand("mysqldump", args...)
		if runErr != nil {
			return module.Result{}, nil, anverr.Wrap(anverr.SubprocessFail, runErr, "executing mysqldump")
		}
		if res.RC != 0 {
			return module.Result{}, nil, anverr.New(anverr.SubprocessFail,
				fmt.Sprintf("mysqldump exited %d: %s", res.RC, res.Stderr))
		}
		return module.Result{Changed: true, Output: p.Target}, nil, nil

	case "import":
		if p.Target == "" {
			return module.Result{}, nil, anverr.New(anverr.InvalidData, "target is required when state=import")
		}
		statements, readErr := os.ReadFile(p.Target)
		if readErr != nil {
			return module.Result{}, nil, anverr.Wrap(anverr.IOError, readErr, "reading "+p.Target)
		}
		if ctx.CheckMode {
			return module.Result{Changed: true, Output: p.Target}, nil, nil
		}
		if _, execErr := db.Exec(string(statements)); execErr != nil {
			return module.Result{}, nil, anverr.Wrap(anverr.SubprocessFail, execErr, "importing "+p.Target)
		}
		return module.Result{Changed: true, Output: p.Target}, nil, nil

	case "absent":
		exists, existsErr := mysqlDatabaseExists(db, p.Name)
		if existsErr != nil {
			return module.Result{}, nil, existsErr
		}
		if !exists {
			return module.Result{Output: p.Name}, nil, nil
		}
		if ctx.Diff != nil {
			ctx.Diff.Emit(p.Name+" present", p.Name+" absent")
		}
		if ctx.CheckMode {
			return module.Result{Changed: true, Output: p.Name}, nil, nil
		}
		if _, execErr := db.Exec("DROP DATABASE `" + p.Name + "`"); execErr != nil {
			return module.Result{}, nil, anverr.Wrap(anverr.SubprocessFail, execErr, "dropping "+p.Name)
		}
		return module.Result{Changed: true, Output: p.Name}, nil, nil

	default: // present
		exists, existsErr := mysqlDatabaseExists(db, p.Name)
		if existsErr != nil {
			return module.Result{}, nil, existsErr
		}
		if exists {
			return module.Result{Output: p.Name}, nil, nil
		}
		if ctx.Diff != nil {
			ctx.Diff.Emit(p.Name+" absent", p.Name+" present encoding="+p.Encoding)
		}
		if ctx.CheckMode {
			return module.Result{Changed: true, Output: p.Name}, nil, nil
		}
		stmt := "CREATE DATABASE `" + p.Name + "` CHARACTER SET " + p.Encoding
		if p.Collation != "" {
			stmt += " COLLATE " + p.Collation
		}
		if _, execErr := db.Exec(stmt); execErr != nil {
			return module.Result{}, nil, anverr.Wrap(anverr.SubprocessFail, execErr, "creating "+p.Name)
		}
		return module.Result{Changed: true, Output: p.Name}, nil, nil
	}
}

func mysqlDSN(p mysqlDBParams) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/", p.LoginUser, p.LoginPass, p.LoginHost)
}

func mysqlDatabaseExists(db *sql.DB, name string) (bool, error) {
	var found string
	err := db.QueryRow("SELECT schema_name FROM information_schema.schemata WHERE schema_name = ?", name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, anverr.Wrap(anverr.SubprocessFail, err, "querying information_schema")
	}
	return true, nil
}
