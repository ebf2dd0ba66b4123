package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/NutriPipe/internal/models"
	"github.com/google/uuid"
)

// sqlStore holds the queries shared by the SQLite and PostgreSQL backends.
// Queries are written with ? placeholders and rebound per dialect.
type sqlStore struct {
	db       *sql.DB
	cipher   FieldCipher
	name     string
	rebind   func(string) string
	isUnique func(error) bool
}

const profileColumns = `identity, name, age, weight, height, activity, goal, diseases, allergies, created_at`

func (s *sqlStore) Exists(ctx context.Context, identity string) bool {
	var one int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM users WHERE identity = ?`), identity).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		slog.Error(s.name+" Exists failed, treating as unregistered", "error", err, "identity", identity)
		return false
	}
	return true
}

func (s *sqlStore) CreateProfile(ctx context.Context, p models.UserProfile) error {
	sealed, err := sealProfile(s.cipher, p)
	if err != nil {
		slog.Error(s.name+" CreateProfile seal failed", "error", err, "identity", p.Identity)
		return &StorageError{Op: "create", Identity: p.Identity, Err: err}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	query := s.rebind(`INSERT INTO users (` + profileColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		p.Identity, p.Name, sealed.age, sealed.weight, sealed.height, sealed.activity,
		string(p.Goal), sealed.diseases, sealed.allergies, p.CreatedAt)
	if err != nil {
		if s.isUnique(err) {
			slog.Debug(s.name+" CreateProfile duplicate", "identity", p.Identity)
			return ErrProfileExists
		}
		slog.Error(s.name+" CreateProfile failed", "error", err, "identity", p.Identity)
		return &StorageError{Op: "create", Identity: p.Identity, Err: err}
	}
	slog.Debug(s.name+" CreateProfile succeeded", "identity", p.Identity, "goal", p.Goal)
	return nil
}

func (s *sqlStore) GetProfile(ctx context.Context, identity string) (*models.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+profileColumns+` FROM users WHERE identity = ?`), identity)

	var p models.UserProfile
	var age, weight, goal, diseases, allergies string
	var height, activity sql.NullString
	err := row.Scan(&p.Identity, &p.Name, &age, &weight, &height, &activity, &goal, &diseases, &allergies, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		slog.Error(s.name+" GetProfile query failed", "error", err, "identity", identity)
		return nil, &StorageError{Op: "get", Identity: identity, Err: err}
	}
	p.Goal = models.Goal(goal)

	if err := openProfile(s.cipher, &p, sealedProfile{
		age: age, weight: weight, height: height.String, activity: activity.String,
		diseases: diseases, allergies: allergies,
	}); err != nil {
		slog.Error(s.name+" GetProfile decrypt failed", "error", err, "identity", identity)
		return nil, &StorageError{Op: "get", Identity: identity, Err: err}
	}
	return &p, nil
}

func (s *sqlStore) ListIdentities(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT identity FROM users ORDER BY created_at`)
	if err != nil {
		slog.Error(s.name+" ListIdentities query failed", "error", err)
		return nil, &StorageError{Op: "list", Err: err}
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &StorageError{Op: "list", Err: fmt.Errorf("scan identity: %w", err)}
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	slog.Debug(s.name+" ListIdentities succeeded", "count", len(ids))
	return ids, nil
}

func (s *sqlStore) AddMeal(ctx context.Context, e models.MealLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	text, err := s.cipher.Encrypt(e.Text)
	if err != nil {
		return &StorageError{Op: "add meal", Identity: e.Identity, Err: err}
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO meals (id, identity, text, created_at) VALUES (?, ?, ?, ?)`),
		e.ID, e.Identity, text, e.CreatedAt)
	if err != nil {
		slog.Error(s.name+" AddMeal failed", "error", err, "identity", e.Identity)
		return &StorageError{Op: "add meal", Identity: e.Identity, Err: err}
	}
	slog.Debug(s.name+" AddMeal succeeded", "identity", e.Identity, "id", e.ID)
	return nil
}

func (s *sqlStore) ListMeals(ctx context.Context, identity string, limit int) ([]models.MealLogEntry, error) {
	query := `SELECT id, identity, text, created_at FROM meals WHERE identity = ? ORDER BY created_at DESC`
	args := []any{identity}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		slog.Error(s.name+" ListMeals query failed", "error", err, "identity", identity)
		return nil, &StorageError{Op: "list meals", Identity: identity, Err: err}
	}
	defer rows.Close()

	var meals []models.MealLogEntry
	for rows.Next() {
		var e models.MealLogEntry
		var sealed string
		if err := rows.Scan(&e.ID, &e.Identity, &sealed, &e.CreatedAt); err != nil {
			return nil, &StorageError{Op: "list meals", Identity: identity, Err: err}
		}
		if e.Text, err = s.cipher.Decrypt(sealed); err != nil {
			return nil, &StorageError{Op: "list meals", Identity: identity, Err: err}
		}
		meals = append(meals, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list meals", Identity: identity, Err: err}
	}
	return meals, nil
}

func (s *sqlStore) Close() error {
	slog.Debug("Closing " + s.name + " database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close "+s.name+" database", "error", err)
	}
	return err
}

// sealedProfile holds the ciphertext of the encrypted profile columns.
type sealedProfile struct {
	age, weight, height, activity, diseases, allergies string
}

func sealProfile(c FieldCipher, p models.UserProfile) (sealedProfile, error) {
	var out sealedProfile
	fields := []struct {
		dst   *string
		plain string
	}{
		{&out.age, strconv.FormatUint(uint64(p.Age), 10)},
		{&out.weight, formatFloat(p.Weight)},
		{&out.height, formatFloat(p.Height)},
		{&out.activity, string(p.Activity)},
		{&out.diseases, p.Diseases},
		{&out.allergies, p.Allergies},
	}
	for _, f := range fields {
		enc, err := c.Encrypt(f.plain)
		if err != nil {
			return out, err
		}
		*f.dst = enc
	}
	return out, nil
}

// openProfile decrypts sealed columns into p. Empty height and activity
// columns belong to rows written before those fields existed.
func openProfile(c FieldCipher, p *models.UserProfile, s sealedProfile) error {
	age, err := c.Decrypt(s.age)
	if err != nil {
		return fmt.Errorf("age: %w", err)
	}
	n, err := strconv.ParseUint(age, 10, 0)
	if err != nil {
		return fmt.Errorf("age: %w", err)
	}
	p.Age = uint(n)

	weight, err := c.Decrypt(s.weight)
	if err != nil {
		return fmt.Errorf("weight: %w", err)
	}
	if p.Weight, err = strconv.ParseFloat(weight, 64); err != nil {
		return fmt.Errorf("weight: %w", err)
	}

	if s.height != "" {
		height, err := c.Decrypt(s.height)
		if err != nil {
			return fmt.Errorf("height: %w", err)
		}
		if p.Height, err = strconv.ParseFloat(height, 64); err != nil {
			return fmt.Errorf("height: %w", err)
		}
	}
	if s.activity != "" {
		activity, err := c.Decrypt(s.activity)
		if err != nil {
			return fmt.Errorf("activity: %w", err)
		}
		p.Activity = models.ActivityLevel(activity)
	}

	if p.Diseases, err = c.Decrypt(s.diseases); err != nil {
		return fmt.Errorf("diseases: %w", err)
	}
	if p.Allergies, err = c.Decrypt(s.allergies); err != nil {
		return fmt.Errorf("allergies: %w", err)
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// questionRebind leaves ? placeholders as they are (SQLite).
func questionRebind(q string) string { return q }

// dollarRebind rewrites ? placeholders to $1..$n (PostgreSQL).
func dollarRebind(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}
