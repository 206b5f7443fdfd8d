// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package feedback persists reviewer verdicts on individual violations.
//
// A verdict is keyed by user and violation id. Because violation ids are
// derived from rule, line and message, a verdict given once keeps applying
// to later reviews of the same finding without storing the violation.
package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-playground/validator/v10"

	badgerstore "github.com/AleutianAI/PolicyReview/services/review/storage/badger"
)

// Type is a reviewer's verdict.
type Type string

const (
	TypeValid         Type = "VALID"
	TypeFalsePositive Type = "FALSE_POSITIVE"
)

// ErrInvalidRecord wraps validation failures from Submit.
var ErrInvalidRecord = errors.New("invalid feedback record")

var validate = validator.New()

// Record is one verdict. Submitting a second verdict for the same user and
// violation replaces the first.
type Record struct {
	ViolationID string    `json:"violation_id" validate:"required,max=128,excludes=/"`
	RuleID      string    `json:"policy_rule_id" validate:"required,max=128"`
	UserID      string    `json:"user_id" validate:"required,max=128,excludes=/"`
	Type        Type      `json:"feedback_type" validate:"required,oneof=VALID FALSE_POSITIVE"`
	Comment     string    `json:"optional_comment,omitempty" validate:"max=2000"`
	Timestamp   time.Time `json:"timestamp"`
}

// Stats counts stored verdicts across all users.
type Stats struct {
	TotalFeedback  int `json:"total_feedback"`
	FalsePositives int `json:"false_positives"`
	ValidReports   int `json:"valid_reports"`
}

const keyPrefix = "feedback/"

func recordKey(userID, violationID string) []byte {
	return []byte(keyPrefix + userID + "/" + violationID)
}

func userPrefix(userID string) []byte {
	return []byte(keyPrefix + userID + "/")
}

// Store is a BadgerDB-backed feedback store.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *badgerstore.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore returns a store over db. The caller owns db.
func NewStore(db *badgerstore.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:     db,
		logger: logger.With("component", "feedback_store"),
		now:    time.Now,
	}
}

// Submit validates and upserts rec. It reports whether the record is new.
func (s *Store) Submit(ctx context.Context, rec Record) (bool, error) {
	if err := validate.Struct(rec); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	rec.Timestamp = s.now().UTC()

	value, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("encode feedback: %w", err)
	}

	created := false
	key := recordKey(rec.UserID, rec.ViolationID)
	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			created = true
		case err != nil:
			return err
		}
		return txn.Set(key, value)
	})
	if err != nil {
		return false, fmt.Errorf("store feedback: %w", err)
	}

	s.logger.Debug("feedback stored",
		"user_id", rec.UserID, "violation_id", rec.ViolationID, "type", rec.Type, "created", created)
	return created, nil
}

// Get returns the verdict of userID on violationID.
func (s *Store) Get(ctx context.Context, userID, violationID string) (Record, bool, error) {
	var (
		rec   Record
		found bool
	)
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(userID, violationID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("read feedback: %w", err)
	}
	return rec, found, nil
}

// FalsePositives returns the ids of violations userID marked FALSE_POSITIVE.
func (s *Store) FalsePositives(ctx context.Context, userID string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	if userID == "" {
		return out, nil
	}
	err := s.scan(ctx, userPrefix(userID), func(rec Record) {
		if rec.Type == TypeFalsePositive {
			out[rec.ViolationID] = struct{}{}
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Stats counts every stored verdict.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.scan(ctx, []byte(keyPrefix), func(rec Record) {
		st.TotalFeedback++
		switch rec.Type {
		case TypeFalsePositive:
			st.FalsePositives++
		case TypeValid:
			st.ValidReports++
		}
	})
	if err != nil {
		return Stats{}, err
	}
	return st, nil
}

// scan decodes every record under prefix. Undecodable values are logged
// and skipped.
func (s *Store) scan(ctx context.Context, prefix []byte, fn func(Record)) error {
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var rec Record
			err := item.Value(func(val []byte) error {
				return json.NewDecoder(bytes.NewReader(val)).Decode(&rec)
			})
			if err != nil {
				s.logger.Warn("skipping undecodable feedback", "key", string(item.Key()), "error", err)
				continue
			}
			fn(rec)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan feedback: %w", err)
	}
	return nil
}
