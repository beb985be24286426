package database

import (
	"context"
	"database/sql"
	"fmt"
)

type seedOrg struct{ id, name, description string }
type seedUser struct{ id, name, phone, nin string }

var seedOrgs = []seedOrg{
	{"1", "Zenith Bank", "A leading financial institution offering banking and investment services."},
	{"2", "Lagos Hospital", "A major healthcare provider specializing in general medicine and surgery."},
	{"3", "EcomShop", "An online retail company providing a wide range of consumer products."},
	{"4", "MobileTel", "A telecommunications company offering mobile and internet services."},
	{"5", "UniTech", "An educational institution focused on technology and innovation."},
}

var seedUsers = []seedUser{
	{"1", "John Doe", "08031234567", "12345678901"},
	{"2", "Jane Smith", "08039876543", "23456789012"},
	{"3", "Michael Lee", "08123456789", "34567890123"},
	{"4", "Amaka Obi", "07011223344", "45678901234"},
}

// Seed inserts development fixture rows. Idempotent, for local use only.
func Seed(ctx context.Context, db *sql.DB) error {
	for _, o := range seedOrgs {
		_, err := db.ExecContext(ctx,
			`INSERT INTO organizations (id, name, description) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
			o.id, o.name, o.description,
		)
		if err != nil {
			return fmt.Errorf("seed organization %s: %w", o.id, err)
		}
	}
	for _, u := range seedUsers {
		_, err := db.ExecContext(ctx,
			`INSERT INTO users (id, name, phone, nin) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`,
			u.id, u.name, u.phone, u.nin,
		)
		if err != nil {
			return fmt.Errorf("seed user %s: %w", u.id, err)
		}
	}
	return nil
}
