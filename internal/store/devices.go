package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrDeviceInvalid  = errors.New("device input is invalid")
)

type Device struct {
	ID         int64
	UserID     int64
	BrandModel string
	OS         string
	OSVersion  string
	CreatedAt  time.Time
}

type CreateDeviceInput struct {
	UserID     int64
	BrandModel string
	OS         string
	OSVersion  string
}

func (s *Store) CreateDevice(ctx context.Context, input CreateDeviceInput) (Device, error) {
	brandModel := strings.TrimSpace(input.BrandModel)
	osName := strings.TrimSpace(input.OS)
	osVersion := strings.TrimSpace(input.OSVersion)
	if input.UserID == 0 || brandModel == "" || osName == "" || osVersion == "" {
		return Device{}, ErrDeviceInvalid
	}
	now := s.now()
	result, err := s.db.ExecContext(
		ctx,
		`INSERT INTO devices (user_id, brand_model, os, os_version, created_at_unix)
		 VALUES (?, ?, ?, ?, ?)`,
		input.UserID,
		brandModel,
		osName,
		osVersion,
		now.Unix(),
	)
	if err != nil {
		return Device{}, fmt.Errorf("insert device: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Device{}, fmt.Errorf("read device id: %w", err)
	}
	return Device{
		ID:         id,
		UserID:     input.UserID,
		BrandModel: brandModel,
		OS:         osName,
		OSVersion:  osVersion,
		CreatedAt:  time.Unix(now.Unix(), 0).UTC(),
	}, nil
}

func (s *Store) ListDevicesByUser(ctx context.Context, userID int64) ([]Device, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, user_id, brand_model, os, os_version, created_at_unix
		 FROM devices
		 WHERE user_id = ?
		 ORDER BY id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	var results []Device
	for rows.Next() {
		record, scanErr := scanDevice(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		results = append(results, record)
	}
	return results, rows.Err()
}

func (s *Store) LookupDevice(ctx context.Context, id int64) (Device, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, user_id, brand_model, os, os_version, created_at_unix
		 FROM devices
		 WHERE id = ?`,
		id,
	)
	record, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Device{}, ErrDeviceNotFound
		}
		return Device{}, err
	}
	return record, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(scanner rowScanner) (Device, error) {
	var record Device
	var createdAtUnix int64
	if err := scanner.Scan(
		&record.ID,
		&record.UserID,
		&record.BrandModel,
		&record.OS,
		&record.OSVersion,
		&createdAtUnix,
	); err != nil {
		return Device{}, err
	}
	record.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	return record, nil
}
