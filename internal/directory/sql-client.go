// Package directory reads organization and session records from the
// pre-existing membership database. The attendance service never writes
// here; scopes are an external entity referenced by id.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"qrpass/entity"
	"qrpass/internal/config"
)

type MySql struct {
	db         *sql.DB
	prefix     string
	statements map[string]*sql.Stmt
	mu         sync.Mutex
}

func NewSQLClient(conf *config.Config) (*MySql, error) {
	if !conf.Directory.Enabled {
		return nil, fmt.Errorf("directory client is disabled in configuration")
	}
	connectionURI := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		conf.Directory.UserName, conf.Directory.Password,
		conf.Directory.HostName, conf.Directory.Port, conf.Directory.Database)
	db, err := sql.Open("mysql", connectionURI)
	if err != nil {
		return nil, fmt.Errorf("sql connect: %w", err)
	}

	// try to ping three times with a 30-second interval; wait for a database to start
	for i := 0; i < 3; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		if i == 2 {
			return nil, fmt.Errorf("ping database: %w", err)
		}
		time.Sleep(30 * time.Second)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	return &MySql{
		db:         db,
		prefix:     conf.Directory.Prefix,
		statements: make(map[string]*sql.Stmt),
	}, nil
}

func (s *MySql) Close() {
	s.mu.Lock()
	for _, stmt := range s.statements {
		_ = stmt.Close()
	}
	s.statements = make(map[string]*sql.Stmt)
	s.mu.Unlock()
	_ = s.db.Close()
}

func (s *MySql) stmt(key, query string) (*sql.Stmt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stmt, ok := s.statements[key]; ok {
		return stmt, nil
	}
	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("prepare %s: %w", key, err)
	}
	s.statements[key] = stmt
	return stmt, nil
}

func (s *MySql) stmtSelectOrganization() (*sql.Stmt, error) {
	query := fmt.Sprintf(
		"SELECT organization_id, name, country FROM %sorganization WHERE organization_id = ?",
		s.prefix)
	return s.stmt("selectOrganization", query)
}

func (s *MySql) stmtSelectSession() (*sql.Stmt, error) {
	query := fmt.Sprintf(
		"SELECT session_id, organization_id, name, starts_at, ends_at FROM %ssession WHERE session_id = ?",
		s.prefix)
	return s.stmt("selectSession", query)
}

// Organization fetches one organization record.
func (s *MySql) Organization(ctx context.Context, id string) (*entity.Scope, error) {
	stmt, err := s.stmtSelectOrganization()
	if err != nil {
		return nil, err
	}
	scope := entity.Scope{Kind: entity.ScopeOrganization}
	var country sql.NullString
	err = stmt.QueryRowContext(ctx, id).Scan(&scope.Id, &scope.Name, &country)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select organization: %w", err)
	}
	scope.Country = country.String
	return &scope, nil
}

// Session fetches one session record together with its owning organization.
func (s *MySql) Session(ctx context.Context, id string) (*entity.Scope, error) {
	stmt, err := s.stmtSelectSession()
	if err != nil {
		return nil, err
	}
	scope := entity.Scope{Kind: entity.ScopeSession}
	var starts, ends sql.NullTime
	err = stmt.QueryRowContext(ctx, id).Scan(&scope.Id, &scope.OrganizationId, &scope.Name, &starts, &ends)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	scope.StartsAt = starts.Time
	scope.EndsAt = ends.Time
	return &scope, nil
}

// Scope resolves a scope id of either kind: organizations first, sessions
// as the fallback. Returns entity.ErrNotFound when neither table has it.
func (s *MySql) Scope(ctx context.Context, id string) (*entity.Scope, error) {
	scope, err := s.Organization(ctx, id)
	if err == nil {
		return scope, nil
	}
	if !errors.Is(err, entity.ErrNotFound) {
		return nil, err
	}
	return s.Session(ctx, id)
}
