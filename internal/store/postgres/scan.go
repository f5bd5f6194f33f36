package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/configsync/configsync/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanUser scans a single row into a model.User.
func scanUser(row scannable) (*model.User, error) {
	var u model.User
	var role string
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&role,
		&u.HashedPassword,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

// scanConfig scans a single row into a model.ServiceConfig.
// The row must contain columns in the order defined by configColumns.
func scanConfig(row scannable) (*model.ServiceConfig, error) {
	var c model.ServiceConfig
	var payload []byte
	err := row.Scan(
		&c.ID,
		&c.Name,
		&payload,
		&c.OwnerID,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		c.Payload = json.RawMessage(payload)
	}
	return &c, nil
}

// scanConfigs scans multiple rows into a slice of model.ServiceConfig pointers.
func scanConfigs(rows *sql.Rows) ([]*model.ServiceConfig, error) {
	var configs []*model.ServiceConfig
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return configs, nil
}

// scanVersion scans a single row into a model.ConfigVersion.
func scanVersion(row scannable) (*model.ConfigVersion, error) {
	var v model.ConfigVersion
	var payload []byte
	err := row.Scan(
		&v.ID,
		&v.ServiceName,
		&v.Version,
		&payload,
		&v.OwnerID,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		v.Payload = json.RawMessage(payload)
	}
	return &v, nil
}

// scanVersions scans multiple rows into a slice of model.ConfigVersion pointers.
func scanVersions(rows *sql.Rows) ([]*model.ConfigVersion, error) {
	var versions []*model.ConfigVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return versions, nil
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
