// Workflow Blackhole - Live Attendance Tracking and Geofence Monitoring
// Copyright 2026 Blackhole Infiverse
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/blackholeinfiverse51/workflow-blackhole

// Package store persists attendance sessions and alerts as JSON documents
// in BadgerDB.
//
// Key layout:
//
//	session:<date>:<employee_id>  -> AttendanceSession
//	alert:<employee_id>:<nanos>:<id> -> Alert
//
// Sessions are keyed by calendar day first so the live aggregator can scan
// one day with a single prefix iteration.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/blackholeinfiverse51/workflow-blackhole/internal/config"
	"github.com/blackholeinfiverse51/workflow-blackhole/internal/models"
)

// Key prefixes for BadgerDB storage.
const (
	sessionKeyPrefix = "session:"
	alertKeyPrefix   = "alert:"
)

// Sentinel errors. ErrPersistence wraps every storage-layer failure so
// callers can treat them uniformly (abort, no broadcast, surface for
// retry).
var (
	ErrPersistence     = errors.New("persistence failure")
	ErrSessionNotFound = errors.New("attendance session not found")
)

// Store is a BadgerDB-backed document store.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store at the configured path. With
// InMemory set, Badger runs without disk persistence; tests use this.
func Open(cfg config.StoreConfig) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	// Badger's default logger writes unstructured lines to stderr;
	// silence it and rely on our own logging at call sites.
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func sessionKey(date, employeeID string) []byte {
	return []byte(sessionKeyPrefix + date + ":" + employeeID)
}

// PutSession writes a session document, replacing any previous version.
func (s *Store) PutSession(ctx context.Context, session *models.AttendanceSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return wrapPersistence("marshal session", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(session.Date, session.EmployeeID), data)
	})
	if err != nil {
		return wrapPersistence("put session", err)
	}
	return nil
}

// GetSession reads one employee's session for a calendar day.
func (s *Store) GetSession(ctx context.Context, date, employeeID string) (*models.AttendanceSession, error) {
	var session models.AttendanceSession

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(date, employeeID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &session)
		})
	})
	if errors.Is(err, ErrSessionNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, wrapPersistence("get session", err)
	}
	return &session, nil
}

// SessionsForDate returns every session recorded on the given day, in key
// (employee ID) order.
func (s *Store) SessionsForDate(ctx context.Context, date string) ([]*models.AttendanceSession, error) {
	var sessions []*models.AttendanceSession

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte(sessionKeyPrefix + date + ":")
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var session models.AttendanceSession
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &session)
			})
			if err != nil {
				return err
			}
			sessions = append(sessions, &session)
		}
		return nil
	})
	if err != nil {
		return nil, wrapPersistence("scan sessions", err)
	}
	return sessions, nil
}

// PutAlert persists an alert document.
func (s *Store) PutAlert(ctx context.Context, alert *models.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return wrapPersistence("marshal alert", err)
	}

	key := fmt.Sprintf("%s%s:%020d:%s", alertKeyPrefix, alert.EmployeeID, alert.SentAt.UnixNano(), alert.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return wrapPersistence("put alert", err)
	}
	return nil
}

// AlertsForEmployee returns an employee's alerts in send order.
func (s *Store) AlertsForEmployee(ctx context.Context, employeeID string) ([]*models.Alert, error) {
	var alerts []*models.Alert

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := []byte(alertKeyPrefix + employeeID + ":")
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var alert models.Alert
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &alert)
			})
			if err != nil {
				return err
			}
			alerts = append(alerts, &alert)
		}
		return nil
	})
	if err != nil {
		return nil, wrapPersistence("scan alerts", err)
	}
	return alerts, nil
}

// wrapPersistence attaches both operation context and the ErrPersistence
// sentinel so errors.Is(err, ErrPersistence) holds at every layer above.
func wrapPersistence(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrPersistence, err))
}
