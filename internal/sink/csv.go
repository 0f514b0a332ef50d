package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/steinik-group/rentscout/internal/model"
	"github.com/steinik-group/rentscout/internal/store"
)

var csvHeader = []string{
	"external_id", "link", "price", "price_per_m2", "area_total", "rooms",
	"floor", "floor_total", "district", "renovation", "seller", "captured_at",
}

// CSVSink appends listings to a local CSV file. Row number doubles as the
// record id. A mutex serializes writers within the process; the file is
// opened per append so external tools can read it between sweeps.
type CSVSink struct {
	path string
	mu   sync.Mutex
}

// NewCSV creates a CSV-backed sink at the given path.
func NewCSV(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Append(ctx context.Context, l *model.CandidateListing) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readAll()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", eris.Wrapf(err, "sink: open csv %s", s.path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if len(rows) == 0 {
		if err := w.Write(csvHeader); err != nil {
			return "", eris.Wrap(err, "sink: write csv header")
		}
	}
	if err := w.Write(csvRow(l)); err != nil {
		return "", eris.Wrapf(err, "sink: write csv row %s", l.ExternalID)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", eris.Wrap(err, "sink: flush csv")
	}

	// Row id: 1-based data row index, header excluded.
	return strconv.Itoa(len(rows) + 1), nil
}

func (s *CSVSink) Exists(ctx context.Context, externalID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readAll()
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if len(row) > 0 && row[0] == externalID {
			return true, nil
		}
	}
	return false, nil
}

func (s *CSVSink) ListSeen(ctx context.Context) ([]store.SeenMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readAll()
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	metas := make([]store.SeenMeta, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 || row[0] == "" {
			continue
		}
		meta := store.SeenMeta{
			ExternalID:   row[0],
			Link:         row[1],
			SinkRecordID: strconv.Itoa(i + 1),
		}
		if len(row) > 2 {
			meta.Price, _ = strconv.ParseInt(row[2], 10, 64)
		}
		if len(row) > 8 {
			meta.District = row[8]
		}
		if len(row) > 11 {
			if ts, err := time.Parse(time.RFC3339, row[11]); err == nil {
				meta.SeenAt = ts
			}
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

// readAll returns the data rows, header excluded.
func (s *CSVSink) readAll() ([][]string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "sink: read csv %s", s.path)
	}
	if len(records) > 0 {
		records = records[1:]
	}
	return records, nil
}

func csvRow(l *model.CandidateListing) []string {
	return []string{
		l.ExternalID,
		l.Link,
		strconv.FormatInt(l.Price, 10),
		strconv.FormatInt(l.PricePerArea, 10),
		strconv.FormatFloat(l.AreaTotal, 'f', -1, 64),
		strconv.Itoa(l.Rooms),
		strconv.Itoa(l.Floor),
		strconv.Itoa(l.FloorTotal),
		l.District,
		string(l.Renovation),
		string(l.SellerType),
		l.CapturedAt.UTC().Format(time.RFC3339),
	}
}
