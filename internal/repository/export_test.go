package repository

import "context"

// MigrateTo moves the schema to an exact version.
func (r *Repository) MigrateTo(version uint) error {
	m, err := r.migrator()
	if err != nil {
		return err
	}
	return m.Migrate(version)
}

func (r *Repository) Exec(ctx context.Context, query string, args ...any) error {
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}
