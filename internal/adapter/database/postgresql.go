package database

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/semmidev/pgstash/internal/config"
	"github.com/semmidev/pgstash/internal/domain"
)

const (
	stderrTailLines = 20
	connectTimeout  = 10
)

type Logger interface {
	Debugf(template string, args ...interface{})
}

type PostgreSQLDatabase struct {
	config    *config.DatabaseConfig
	binPath   string
	extraArgs []string
	logger    Logger
}

func NewPostgreSQL(cfg *config.DatabaseConfig, backup *config.BackupConfig, logger Logger) *PostgreSQLDatabase {
	return &PostgreSQLDatabase{
		config:    cfg,
		binPath:   backup.PgDumpPath,
		extraArgs: backup.PgDumpArgs(),
		logger:    logger,
	}
}

// Dump runs pg_dump in plain format and copies its stdout into w. stderr is
// forwarded to the debug log; its tail ends up in the error on failure.
func (p *PostgreSQLDatabase) Dump(ctx context.Context, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binPath, p.args()...)
	cmd.Env = p.env()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: failed to open pg_dump stdout: %w", domain.ErrDump, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%w: failed to open pg_dump stderr: %w", domain.ErrDump, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: failed to start pg_dump: %w", domain.ErrDump, err)
	}

	tail := newTail(stderrTailLines)
	var eg errgroup.Group
	eg.Go(func() error {
		reader := bufio.NewReader(stderr)
		for {
			line, err := reader.ReadString('\n')
			if line = strings.TrimRight(line, "\r\n"); line != "" {
				tail.add(line)
				p.logger.Debugf("[%s] pg_dump: %s", p.config.Name, line)
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
		}
	})

	_, copyErr := io.Copy(w, stdout)
	if copyErr != nil {
		cancel()
		_, _ = io.Copy(io.Discard, stdout)
	}
	stderrErr := eg.Wait()
	waitErr := cmd.Wait()

	switch {
	case copyErr != nil:
		return fmt.Errorf("%w: failed to write dump output: %w", domain.ErrDump, copyErr)
	case waitErr != nil:
		return fmt.Errorf("%w: pg_dump failed: %w, output: %s", domain.ErrDump, waitErr, tail.String())
	case stderrErr != nil:
		return fmt.Errorf("%w: failed to read pg_dump stderr: %w", domain.ErrDump, stderrErr)
	}

	return nil
}

func (p *PostgreSQLDatabase) GetName() string {
	return p.config.Name
}

func (p *PostgreSQLDatabase) GetType() string {
	return "postgresql"
}

// Ping opens a single connection with the dump credentials so that
// authentication and reachability problems surface before pg_dump runs.
func (p *PostgreSQLDatabase) Ping(ctx context.Context) error {
	connConfig, err := pgx.ParseConfig(p.ConnString())
	if err != nil {
		return fmt.Errorf("%w: invalid connection parameters: %w", domain.ErrDump, err)
	}

	conn, err := pgx.ConnectConfig(ctx, connConfig)
	if err != nil {
		return fmt.Errorf("%w: postgresql connect failed: %w", domain.ErrDump, err)
	}
	defer conn.Close(context.WithoutCancel(ctx))

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("%w: postgresql ping failed: %w", domain.ErrDump, err)
	}

	return nil
}

func (p *PostgreSQLDatabase) ConnString() string {
	query := url.Values{}
	query.Set("sslmode", p.config.SSLMode)
	query.Set("connect_timeout", strconv.Itoa(connectTimeout))

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.config.Username, p.config.Password),
		Host:     net.JoinHostPort(p.config.Host, strconv.Itoa(p.config.Port)),
		Path:     "/" + p.config.Name,
		RawQuery: query.Encode(),
	}
	return u.String()
}

func (p *PostgreSQLDatabase) args() []string {
	args := []string{
		fmt.Sprintf("--host=%s", p.config.Host),
		fmt.Sprintf("--port=%d", p.config.Port),
		fmt.Sprintf("--username=%s", p.config.Username),
		"--no-password",
		"--format=plain",
	}
	args = append(args, p.extraArgs...)
	return append(args, fmt.Sprintf("--dbname=%s", p.config.Name))
}

func (p *PostgreSQLDatabase) env() []string {
	return append(os.Environ(),
		fmt.Sprintf("PGPASSWORD=%s", p.config.Password),
		fmt.Sprintf("PGSSLMODE=%s", p.config.SSLMode),
	)
}

// tail keeps the last n lines written to it.
type tail struct {
	lines []string
	n     int
}

func newTail(n int) *tail {
	return &tail{n: n}
}

func (t *tail) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *tail) String() string {
	return strings.Join(t.lines, "\n")
}
