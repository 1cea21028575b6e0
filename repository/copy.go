package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/arrxxhh/Payment-gateway/models"
)

// CopyStats reports the outcome of CopyTransactions.
type CopyStats struct {
	Copied  int
	Skipped int
}

// CopyTransactions inserts every record of src into dst. Records whose hash
// already exists in dst are skipped, so a copy can be re-run after a failure.
// Ciphertext is moved as is; both stores must share the same AES material.
func CopyTransactions(ctx context.Context, src, dst TransactionRepository, filter TransactionFilter) (CopyStats, error) {
	var stats CopyStats

	rows, err := src.Scan(ctx, filter)
	if err != nil {
		return stats, fmt.Errorf("scan source: %w", err)
	}

	// oldest first so the destination keeps insertion order
	for i := len(rows) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		row := rows[i]
		if err := dst.Insert(ctx, &row); err != nil {
			if errors.Is(err, ErrDuplicateKey) {
				stats.Skipped++
				continue
			}
			return stats, fmt.Errorf("insert %s: %w", shortHash(row), err)
		}
		stats.Copied++
	}
	return stats, nil
}

func shortHash(t models.Transaction) string {
	if len(t.TxnIDHash) > 12 {
		return t.TxnIDHash[:12]
	}
	return t.TxnIDHash
}
