package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	pqfile "github.com/apache/arrow-go/v18/parquet/file"
	pqschema "github.com/apache/arrow-go/v18/parquet/schema"

	"github.com/tranvietlong/vnalgo-core/domain"
	"github.com/tranvietlong/vnalgo-core/vo"
)

// tickGroupNode is the parquet schema for one exported tick: symbol, price,
// volume, exchange, ts_event (the tick's ts) — grounded on the writer-properties/row-group/schema
// shape in NimbleMarkets-dbn-go's parquet writer, with the zstd codec
// spec.md §6 requires in place of that teacher's Snappy.
func tickGroupNode() *pqschema.GroupNode {
	return pqschema.MustGroup(pqschema.NewGroupNode("schema", parquet.Repetitions.Required, pqschema.FieldList{
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted("symbol", parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted("price", parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeLogical("volume", parquet.Repetitions.Optional, pqschema.NewIntLogicalType(64, false), parquet.Types.Int64, 0, -1)),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted("exchange", parquet.Repetitions.Optional, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeLogical("ts_event", parquet.Repetitions.Optional, pqschema.NewTimestampLogicalType(true, pqschema.TimeUnitNanos), parquet.Types.Int64, 0, -1)),
	}, -1))
}

// ExportTicksAsParquet queries every tick for (symbol-agnostic) day and
// writes it to a Hive-partitioned directory layout:
// baseDir/year=YYYY/month=MM/day=DD/ticks.parquet. Partitioning is done at
// the directory level by this export job, not by the parquet library, per
// spec.md §6.
func (s *Store) ExportTicksAsParquet(ctx context.Context, baseDir string, day time.Time) error {
	ticks, err := s.queryTicksForDay(ctx, day)
	if err != nil {
		return fmt.Errorf("storage: query ticks for export: %w", err)
	}
	if len(ticks) == 0 {
		return nil
	}

	partitionDir := filepath.Join(baseDir,
		fmt.Sprintf("year=%04d", day.Year()),
		fmt.Sprintf("month=%02d", int(day.Month())),
		fmt.Sprintf("day=%02d", day.Day()),
	)
	if err := os.MkdirAll(partitionDir, 0755); err != nil {
		return fmt.Errorf("storage: create partition directory: %w", err)
	}

	destPath := filepath.Join(partitionDir, "ticks.parquet")
	outFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("storage: create parquet file: %w", err)
	}
	defer outFile.Close()

	props := parquet.NewWriterProperties(
		parquet.WithVersion(parquet.V2_LATEST),
		parquet.WithCompression(compress.Codecs.Zstd),
	)

	writer := pqfile.NewParquetWriter(outFile, tickGroupNode(), pqfile.WithWriterProps(props))
	defer writer.Close()

	rgw := writer.AppendBufferedRowGroup()
	for _, tick := range ticks {
		if err := writeTickRow(rgw, tick); err != nil {
			rgw.Close()
			return fmt.Errorf("storage: write tick row: %w", err)
		}
	}
	rgw.Close()

	if err := writer.FlushWithFooter(); err != nil {
		return fmt.Errorf("storage: flush parquet writer: %w", err)
	}

	return nil
}

func writeTickRow(rgw pqfile.BufferedRowGroupWriter, tick domain.Tick) error {
	cw, err := rgw.Column(0)
	if err != nil {
		return err
	}
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{[]byte(tick.Symbol)}, []int16{1}, nil)

	cw, err = rgw.Column(1)
	if err != nil {
		return err
	}
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{[]byte(tick.Price.String())}, []int16{1}, nil)

	cw, err = rgw.Column(2)
	if err != nil {
		return err
	}
	cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{tick.Volume}, []int16{1}, nil)

	cw, err = rgw.Column(3)
	if err != nil {
		return err
	}
	cw.(*pqfile.ByteArrayColumnChunkWriter).WriteBatch([]parquet.ByteArray{[]byte(tick.Exchange)}, []int16{1}, nil)

	cw, err = rgw.Column(4)
	if err != nil {
		return err
	}
	cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{tick.Timestamp.UnixNano()}, []int16{1}, nil)

	return nil
}

func (s *Store) queryTicksForDay(ctx context.Context, day time.Time) ([]domain.Tick, error) {
	var ticks []domain.Tick

	err := s.pool.Do(ctx, func(ctx context.Context) error {
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		end := start.Add(24 * time.Hour)

		rows, err := s.db.QueryContext(ctx, `SELECT symbol, price, volume, exchange, ts FROM ticks WHERE ts >= ? AND ts < ? ORDER BY ts`, start, end)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var symbol, price, exchange string
			var volume int64
			var ts time.Time
			if err := rows.Scan(&symbol, &price, &volume, &exchange, &ts); err != nil {
				return err
			}
			p, _ := vo.NewPriceFromString(price)
			ticks = append(ticks, domain.Tick{Symbol: vo.Symbol(symbol), Price: p, Volume: volume, Exchange: vo.Exchange(exchange), Timestamp: ts})
		}
		return rows.Err()
	})

	return ticks, err
}
