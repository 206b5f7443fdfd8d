// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package feedback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	badgerstore "github.com/AleutianAI/PolicyReview/services/review/storage/badger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := badgerstore.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewStore(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func rec(user, violation string, typ Type) Record {
	return Record{ViolationID: violation, RuleID: "no_eval", UserID: user, Type: typ}
}

func TestSubmit_Upsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Submit(ctx, rec("alice", "v1", TypeValid))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Submit(ctx, Record{
		ViolationID: "v1", RuleID: "no_eval", UserID: "alice",
		Type: TypeFalsePositive, Comment: "test fixture",
	})
	require.NoError(t, err)
	assert.False(t, created)

	got, found, err := s.Get(ctx, "alice", "v1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, TypeFalsePositive, got.Type)
	assert.Equal(t, "test fixture", got.Comment)
	assert.Equal(t, 2025, got.Timestamp.Year())

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalFeedback: 1, FalsePositives: 1}, st)
}

func TestSubmit_Validation(t *testing.T) {
	s := newTestStore(t)
	tests := []struct {
		name string
		rec  Record
	}{
		{name: "missing violation", rec: Record{RuleID: "r", UserID: "u", Type: TypeValid}},
		{name: "missing user", rec: Record{ViolationID: "v", RuleID: "r", Type: TypeValid}},
		{name: "unknown type", rec: Record{ViolationID: "v", RuleID: "r", UserID: "u", Type: "MAYBE"}},
		{name: "slash in user", rec: Record{ViolationID: "v", RuleID: "r", UserID: "a/b", Type: TypeValid}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Submit(context.Background(), tt.rec)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestFalsePositives_PerUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, r := range []Record{
		rec("alice", "v1", TypeFalsePositive),
		rec("alice", "v2", TypeValid),
		rec("alice", "v3", TypeFalsePositive),
		rec("alicia", "v4", TypeFalsePositive),
		rec("bob", "v1", TypeValid),
	} {
		_, err := s.Submit(ctx, r)
		require.NoError(t, err)
	}

	alice, err := s.FalsePositives(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"v1": {}, "v3": {}}, alice)

	bob, err := s.FalsePositives(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bob)

	anon, err := s.FalsePositives(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, anon)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalFeedback: 5, FalsePositives: 3, ValidReports: 2}, st)
}

func TestScan_SkipsCorruptValues(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Submit(ctx, rec("alice", "v1", TypeFalsePositive))
	require.NoError(t, err)
	require.NoError(t, s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(recordKey("alice", "broken"), []byte("{not json"))
	}))

	fps, err := s.FalsePositives(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, fps, 1)
}

func TestSubmit_Concurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Submit(ctx, rec("carol", fmt.Sprintf("v%d", i), TypeFalsePositive))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	fps, err := s.FalsePositives(ctx, "carol")
	require.NoError(t, err)
	assert.Len(t, fps, 20)
}
