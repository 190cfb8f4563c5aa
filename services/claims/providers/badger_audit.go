// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/datatypes"
	"github.com/ClearlineAI/ClearlineClaims/services/claims/storage/auditdb"
)

// Key layout. Timestamps are RFC3339Nano so lexicographic order is
// chronological order within a prefix.
const (
	auditKeyPrefix   = "audit/"
	historyKeyPrefix = "history/"
)

// BadgerAuditSink persists audit records in the embedded audit database.
//
// Each Append writes the full record under audit/<ts>/<id> and a compact
// history entry under history/<policy>/<ts> in a single transaction, so a
// cancelled request never leaves a partial record.
type BadgerAuditSink struct {
	db *auditdb.DB
}

// NewBadgerAuditSink wraps an opened audit database.
func NewBadgerAuditSink(db *auditdb.DB) *BadgerAuditSink {
	return &BadgerAuditSink{db: db}
}

// Append implements the AuditSink interface.
func (s *BadgerAuditSink) Append(ctx context.Context, record datatypes.AuditRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	recordBytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	historyBytes, err := json.Marshal(datatypes.HistoricalClaim{
		PolicyNumber: record.PolicyNumber,
		Amount:       record.ClaimAmount,
		Status:       string(record.Status),
		SubmittedAt:  record.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}

	ts := record.Timestamp.UTC().Format(time.RFC3339Nano)
	auditKey := []byte(auditKeyPrefix + ts + "/" + record.Id)
	historyKey := []byte(historyKeyPrefix + record.PolicyNumber + "/" + ts)

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(auditKey, recordBytes); err != nil {
			return err
		}
		return txn.Set(historyKey, historyBytes)
	})
	if err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}

	slog.Debug("Appended audit record", "requestID", record.RequestId, "status", record.Status)
	return nil
}

// Query implements the AuditSink interface. Records are returned newest
// first; zero-value filter fields are ignored.
func (s *BadgerAuditSink) Query(ctx context.Context, filter datatypes.AuditFilter) ([]datatypes.AuditRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	var records []datatypes.AuditRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(auditKeyPrefix)
		// Iterate in reverse so newest records come first.
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration needs a seek key past the whole prefix.
		seek := []byte(auditKeyPrefix + "\xff")
		for it.Seek(seek); it.ValidForPrefix([]byte(auditKeyPrefix)); it.Next() {
			if filter.Limit > 0 && len(records) >= filter.Limit {
				return nil
			}
			var record datatypes.AuditRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			}); err != nil {
				return fmt.Errorf("decode audit record: %w", err)
			}
			if matchesFilter(record, filter) {
				records = append(records, record)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	return records, nil
}

func matchesFilter(record datatypes.AuditRecord, filter datatypes.AuditFilter) bool {
	if filter.PolicyNumber != "" && record.PolicyNumber != filter.PolicyNumber {
		return false
	}
	if filter.Status != "" && record.Status != filter.Status {
		return false
	}
	if !filter.Since.IsZero() && record.Timestamp.Before(filter.Since) {
		return false
	}
	if !filter.Until.IsZero() && record.Timestamp.After(filter.Until) {
		return false
	}
	return true
}

// BadgerClaimHistory reads per-policy claim history written by the audit
// sink. Shares the same database instance.
type BadgerClaimHistory struct {
	db *auditdb.DB
}

// NewBadgerClaimHistory wraps an opened audit database.
func NewBadgerClaimHistory(db *auditdb.DB) *BadgerClaimHistory {
	return &BadgerClaimHistory{db: db}
}

// RecentClaims implements the ClaimHistory interface.
func (h *BadgerClaimHistory) RecentClaims(ctx context.Context, policyNumber string, since time.Time) ([]datatypes.HistoricalClaim, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	prefix := []byte(historyKeyPrefix + policyNumber + "/")
	var claims []datatypes.HistoricalClaim

	err := h.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var claim datatypes.HistoricalClaim
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &claim)
			}); err != nil {
				return fmt.Errorf("decode history entry: %w", err)
			}
			if claim.SubmittedAt.After(since) {
				claims = append(claims, claim)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query claim history: %w", err)
	}
	return claims, nil
}

var (
	_ AuditSink    = (*BadgerAuditSink)(nil)
	_ ClaimHistory = (*BadgerClaimHistory)(nil)
)
