package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"movietrends/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// SuccessMarker is written next to the part file once it is complete.
const SuccessMarker = "_SUCCESS"

// CSVSink writes every ranking to <out>/<name>/<part file> with a header row,
// replacing whatever the directory held before.
type CSVSink struct {
	partFile string
	log      *log.Helper
}

// NewCSVSink creates a CSV directory sink
func NewCSVSink(partFile string, logger log.Logger) *CSVSink {
	if partFile == "" {
		partFile = "part-00000.csv"
	}
	return &CSVSink{partFile: partFile, log: log.NewHelper(logger)}
}

func (s *CSVSink) Emit(ctx context.Context, out string, r *biz.Ranking) error {
	if out == "" {
		return errors.New("output folder is empty")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Join(out, r.Name)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	path := filepath.Join(dir, s.partFile)
	if err := writeCSV(path, r); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, SuccessMarker), nil, 0o644); err != nil {
		return fmt.Errorf("failed to mark %s complete: %w", dir, err)
	}
	s.log.Debugf("wrote %d rows to %s", len(r.Rows), path)
	return nil
}

func writeCSV(path string, r *biz.Ranking) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(r.Columns()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.WriteAll(r.Records()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
