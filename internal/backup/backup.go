// Package backup dumps the active database with its native dump tool.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/shiurfinder/shiurfinder/internal/config"
	"github.com/shiurfinder/shiurfinder/internal/logging"
)

var ErrUnsupported = errors.New("backup not supported")

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args, env []string) ([]byte, error)

func execRunner(ctx context.Context, name string, args, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	return cmd.CombinedOutput()
}

type Service struct {
	driver string
	store  config.StoreConfig
	cfg    config.BackupConfig
	logger *logging.Logger
	run    Runner
	now    func() time.Time
}

// NewService backs up the store named by driver, which is the store that
// is actually serving and may differ from the configured one after a
// fallback.
func NewService(driver string, storeCfg config.StoreConfig, cfg config.BackupConfig, logger *logging.Logger) *Service {
	return &Service{
		driver: driver,
		store:  storeCfg,
		cfg:    cfg,
		logger: logger,
		run:    execRunner,
		now:    time.Now,
	}
}

// Run writes a dump into a fresh backup-<timestamp> directory under the
// backup dir and returns the directory name.
func (s *Service) Run(ctx context.Context) (string, error) {
	var name string
	var args, env []string

	dirName := "backup-" + s.now().UTC().Format("2006-01-02T15-04-05.000Z")
	out := filepath.Join(s.cfg.Dir, dirName)

	switch s.driver {
	case config.StoreMongo:
		name = s.cfg.MongodumpBin
		args = []string{"--uri=" + s.store.MongoURI, "--db=" + s.store.MongoDatabase, "--out=" + out}
	case config.StorePostgres:
		pg := s.store.Postgres
		name = s.cfg.PgDumpBin
		args = []string{"--format=directory", "--file=" + out}
		env = []string{
			"PGHOST=" + pg.Host,
			"PGPORT=" + pg.Port,
			"PGUSER=" + pg.User,
			"PGPASSWORD=" + pg.Password,
			"PGDATABASE=" + pg.DBName,
			"PGSSLMODE=" + pg.SSLMode,
		}
	default:
		return "", fmt.Errorf("%w for %s store", ErrUnsupported, s.driver)
	}

	if err := os.MkdirAll(s.cfg.Dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create backup dir: %w", err)
	}

	start := time.Now()
	if output, err := s.run(ctx, name, args, env); err != nil {
		s.logger.Error("backup failed", "tool", name, "error", err, "output", string(output))
		return "", fmt.Errorf("%s failed: %w", filepath.Base(name), err)
	}

	s.logger.Info("backup completed", "driver", s.driver, "dir", out, "duration", time.Since(start))
	return dirName, nil
}
