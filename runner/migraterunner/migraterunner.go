// Package migraterunner applies database migrations and exits.
package migraterunner

import (
	"context"
	"fmt"
	"log"

	"github.com/tranquilae/Tranquilae-sub003/postgres"
	"github.com/tranquilae/Tranquilae-sub003/runner"
)

type migraterunner struct {
	m *postgres.MigrationRunner
}

func New(cfg *runner.Config) (runner.Runner, error) {
	if cfg.Dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	return &migraterunner{m: postgres.NewMigrationRunner(cfg.Dsn)}, nil
}

func (r *migraterunner) Run(context.Context) error {
	if err := r.m.RunMigrations(); err != nil {
		return err
	}

	log.Println("migrations applied")

	return nil
}

func (r *migraterunner) Close(context.Context) error {
	return nil
}
