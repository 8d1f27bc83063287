package archive

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/auditor-project/auditor/internal/sqlstore"
)

// Restore reads every row from the Parquet file at path and re-inserts them
// into store in a single transaction (§4.5's "Restore" sibling tool
// contract). It is the inverse of WriteMonth + DeleteRange.
func Restore(ctx context.Context, store *sqlstore.Store, path string) (int, error) {
	records, err := ReadAll(path)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	if err := store.BulkInsert(ctx, records); err != nil {
		return 0, fmt.Errorf("archive: restore %s: %w", path, err)
	}
	klog.InfoS("archive file restored", "path", path, "rows", len(records))
	return len(records), nil
}
