package userstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

type (
	// User is the identity record shared by local and federated accounts.
	// Empty strings stand for absent optional fields.
	User struct {
		ID           string
		Email        string
		Username     string
		PasswordHash string
		FederatedID  string
		Secret       string
		CreatedAt    time.Time
	}

	Store struct {
		db  *sql.DB
		now func() time.Time
	}

	rowScanner interface {
		Scan(...interface{}) error
	}
)

const (
	userColumns = `user_id, email, username, password_hash, federated_id, secret, created_at`
)

var (
	//go:embed migrations/*.sql
	migrations embed.FS
)

// Local reports whether the record can authenticate with a password.
func (u *User) Local() bool {
	return u.PasswordHash != ""
}

// Open returns a store backed by dir/users.db, creating the directory
// and applying pending migrations.
func Open(ctx context.Context, dir string) (*Store, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("unable to create directory %v to store users, cause %w", dir, err)
	}
	dbfile := filepath.Join(dir, "users.db")
	connstr := fmt.Sprintf("file:%v?_journal=wal&_busy_timeout=5000&_foreign_keys=on&mode=rwc", dbfile)
	conn, err := sql.Open("sqlite3", connstr)
	if err != nil {
		return nil, fmt.Errorf("unable to open %v, cause %w", dbfile, err)
	}
	err = conn.PingContext(ctx)
	if err != nil {
		conn.Close()
		return nil, unavailable("open", err)
	}
	s := New(conn)
	err = s.Migrate(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database. The schema is assumed to be
// in place, call Migrate otherwise.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("unable to load embedded migrations, cause %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return fmt.Errorf("unable to prepare migrations, cause %w", err)
	}
	_, err = provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("unable to apply migrations, cause %w", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where user_id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, UserNotFound{Key: id}
	} else if err != nil {
		return nil, unavailable("find by id", err)
	}
	return &u, nil
}

func (s *Store) FindByFederatedID(ctx context.Context, federatedID string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where federated_id = ?`, federatedID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, UserNotFound{Key: federatedID}
	} else if err != nil {
		return nil, unavailable("find by federated id", err)
	}
	return &u, nil
}

// FindByUsername returns every record, local or federated, using the
// given username. Usernames are not unique.
func (s *Store) FindByUsername(ctx context.Context, username string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `select `+userColumns+` from users
		where username_hash64 = ? and username = ?
		order by rowid asc`, usernameHash(username), username)
	if err != nil {
		return nil, unavailable("find by username", err)
	}
	return collectUsers(rows, "find by username")
}

// Create inserts a new record with a freshly generated id.
func (s *Store) Create(ctx context.Context, u User) (*User, error) {
	u.ID = uuid.NewString()
	u.CreatedAt = s.now().UTC()
	_, err := s.db.ExecContext(ctx, `insert into users(user_id, email, username, username_hash64, password_hash, federated_id, secret, created_at)
		values (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Username, usernameHash(u.Username),
		nullString(u.PasswordHash), nullString(u.FederatedID), nullString(u.Secret), u.CreatedAt.UnixNano())
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return nil, Conflict{Key: u.FederatedID}
	} else if err != nil {
		return nil, unavailable("create", err)
	}
	return &u, nil
}

// FindOrCreateFederated returns the record bound to u.FederatedID, creating
// it from u when absent. The boolean reports whether a record was created.
func (s *Store) FindOrCreateFederated(ctx context.Context, u User) (*User, bool, error) {
	if u.FederatedID == "" {
		return nil, false, errors.New("cannot resolve a federated user without a federated id")
	}
	found, err := s.FindByFederatedID(ctx, u.FederatedID)
	var notFound UserNotFound
	if err == nil {
		return found, false, nil
	} else if !errors.As(err, &notFound) {
		return nil, false, err
	}
	u.ID = uuid.NewString()
	u.CreatedAt = s.now().UTC()
	u.PasswordHash = ""
	res, err := s.db.ExecContext(ctx, `insert into users(user_id, email, username, username_hash64, password_hash, federated_id, secret, created_at)
		values (?, ?, ?, ?, null, ?, ?, ?)
		on conflict (federated_id) where federated_id is not null do nothing`,
		u.ID, u.Email, u.Username, usernameHash(u.Username),
		u.FederatedID, nullString(u.Secret), u.CreatedAt.UnixNano())
	if err != nil {
		return nil, false, unavailable("find or create federated", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, unavailable("find or create federated", err)
	}
	if n == 0 {
		// another request created it between the lookup and the insert
		found, err = s.FindByFederatedID(ctx, u.FederatedID)
		return found, false, err
	}
	return &u, true, nil
}

// Save persists the mutable part of u, which is only the secret.
func (s *Store) Save(ctx context.Context, u *User) error {
	res, err := s.db.ExecContext(ctx, `update users set secret = ? where user_id = ?`, nullString(u.Secret), u.ID)
	if err != nil {
		return unavailable("save", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("save", err)
	}
	if n == 0 {
		return UserNotFound{Key: u.ID}
	}
	return nil
}

// FindAllWithSecret lists users with a non-empty secret in insertion order.
func (s *Store) FindAllWithSecret(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `select `+userColumns+` from users
		where secret is not null and secret <> ''
		order by rowid asc`)
	if err != nil {
		return nil, unavailable("find all with secret", err)
	}
	return collectUsers(rows, "find all with secret")
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func collectUsers(rows *sql.Rows, op string) ([]User, error) {
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, unavailable(op, err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return out, nil
}

func scanUser(row rowScanner) (User, error) {
	var u User
	var passwordHash, federatedID, secret sql.NullString
	var createdAt int64
	err := row.Scan(&u.ID, &u.Email, &u.Username, &passwordHash, &federatedID, &secret, &createdAt)
	if err != nil {
		return User{}, err
	}
	u.PasswordHash = passwordHash.String
	u.FederatedID = federatedID.String
	u.Secret = secret.String
	u.CreatedAt = time.Unix(0, createdAt).UTC()
	return u, nil
}

func usernameHash(username string) int64 {
	return int64(xxhash.Sum64String(username))
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
