package eventlog

import (
	"fmt"
	"os"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

const exportBatchSize = 1000

type parquetRow struct {
	Sequence   int64  `parquet:"name=sequence, type=INT64"`
	ID         string `parquet:"name=id, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Type       string `parquet:"name=type, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Attributes string `parquet:"name=attributes, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Digest     string `parquet:"name=digest, type=UTF8, encoding=PLAIN_DICTIONARY"`
	CreatedAt  int64  `parquet:"name=created_at_ms, type=INT64"`
}

// ExportParquet writes every record, oldest first, to a snappy-compressed
// parquet file at path and returns the number of rows written.
func (s *Store) ExportParquet(path string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("eventlog: store not configured")
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("eventlog: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("eventlog: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	written := 0
	var cursor uint64
	for {
		var batch []Record
		err := s.db.Where("sequence > ?", cursor).
			Order("sequence asc").
			Limit(exportBatchSize).
			Find(&batch).Error
		if err != nil {
			file.Close()
			return written, fmt.Errorf("eventlog: scan events: %w", err)
		}
		for _, rec := range batch {
			row := &parquetRow{
				Sequence:   int64(rec.Sequence),
				ID:         rec.ID.String(),
				Type:       rec.Type,
				Attributes: rec.Attributes,
				Digest:     rec.Digest,
				CreatedAt:  rec.CreatedAt.UnixMilli(),
			}
			if err := pw.Write(row); err != nil {
				file.Close()
				return written, fmt.Errorf("eventlog: write parquet row: %w", err)
			}
			written++
			cursor = rec.Sequence
		}
		if len(batch) < exportBatchSize {
			break
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return written, fmt.Errorf("eventlog: finalize parquet: %w", err)
	}
	if err := file.Close(); err != nil {
		return written, fmt.Errorf("eventlog: close parquet: %w", err)
	}
	return written, nil
}
