package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/SagenKoder/hprof-parser/internal/parser/hprof"
	"github.com/SagenKoder/hprof-parser/internal/sink"
	apperrors "github.com/SagenKoder/hprof-parser/pkg/errors"
	"github.com/SagenKoder/hprof-parser/pkg/telemetry"
	"github.com/SagenKoder/hprof-parser/pkg/utils"
)

var (
	decodeInput inputFlags
	decodeDB    string
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode a heap dump into a database",
	Long: `Decode a heap dump and write every record to the configured database.

Tables: strings, classes, objects, fields, static_fields, arrays,
object_array_elements, primitive_array_elements, constants, heap_roots.

The database is chosen by the database.* configuration keys; --db
overrides the SQLite file path.`,
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeInput.register(decodeCmd.Flags())
	decodeCmd.Flags().StringVar(&decodeDB, "db", "", "SQLite database file (overrides config)")
}

func runDecode(cmd *cobra.Command, args []string) error {
	log := GetLogger()
	c := GetConfig()

	dbCfg := c.Database
	if decodeDB != "" {
		dbCfg.Type = string(sink.DBTypeSQLite)
		dbCfg.Path = decodeDB
	}

	ctx, span := telemetry.Tracer().Start(cmd.Context(), "hprof.decode",
		trace.WithAttributes(
			attribute.String("hprof.input", decodeInput.key),
			attribute.String("db.system", dbCfg.Type),
		))
	defer span.End()

	fail := func(err error) error {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.code", apperrors.GetErrorCode(err)))
		span.SetStatus(codes.Error, apperrors.GetErrorMessage(err))
		return err
	}

	timer := utils.NewTimer("decode", utils.WithLogger(log), utils.WithEnabled(verbose))

	pt := timer.Start("connect")
	db, err := sink.NewGormDB(&dbCfg)
	if err != nil {
		return fail(err)
	}
	defer sink.Close(db)
	if err := sink.Migrate(db); err != nil {
		return fail(err)
	}
	pt.Stop()

	rc, ctype, err := openInput(ctx, c, &decodeInput)
	if err != nil {
		return fail(err)
	}
	defer rc.Close()
	log.Info("Decoding %s (compression: %s) into %s", decodeInput.key, ctype, dbCfg.Type)

	handler := sink.NewSQLHandler(ctx, db, sink.Options{
		BatchSize:              dbCfg.BatchSize,
		StorePrimitiveElements: dbCfg.StorePrimitiveElements,
		Logger:                 log,
	})

	next, filtered := withFilter(handler, &decodeInput)

	var summary *hprof.ParseSummary
	_, err = timer.TimeFuncWithError("parse", func() error {
		var perr error
		summary, perr = newParser(c).Parse(ctx, rc, next)
		return perr
	})
	if err != nil {
		return fail(fmt.Errorf("decode failed: %w", err))
	}

	span.SetAttributes(
		attribute.Int64("hprof.records", summary.Records()),
		attribute.Int64("hprof.sub_records", summary.SubRecords()),
		attribute.Int64("hprof.bytes", summary.BytesRead),
		attribute.Int64("db.rows", handler.TotalRows()),
	)

	logSummary(log, summary)
	log.Info("Rows written:   %s", humanize.Comma(handler.TotalRows()))
	if filtered != nil {
		log.Info("Filtered out:   %s", humanize.Comma(filtered.Dropped()))
	}
	timer.PrintSummary()
	return nil
}

// logSummary reports the record counts of a finished parse.
func logSummary(log utils.Logger, s *hprof.ParseSummary) {
	log.Info("=== Decode Summary ===")
	if s.Header != nil {
		log.Info("Format:         %s (id size %d, dumped %s)",
			s.Header.Format, s.Header.IDSize, humanize.Time(s.Header.Timestamp))
	}
	log.Info("Bytes read:     %s", humanize.Bytes(uint64(s.BytesRead)))
	log.Info("Records:        %s (%s skipped)", humanize.Comma(s.Records()), humanize.Comma(s.SkippedRecords))
	log.Info("Strings:        %s", humanize.Comma(s.Strings))
	log.Info("Classes:        %s loaded, %s dumped", humanize.Comma(s.LoadClasses), humanize.Comma(s.ClassDumps))
	log.Info("Instances:      %s", humanize.Comma(s.InstanceDumps))
	log.Info("Arrays:         %s object, %s primitive",
		humanize.Comma(s.ObjectArrayDumps), humanize.Comma(s.PrimitiveArrayDumps))
	log.Info("GC roots:       %s", humanize.Comma(s.Roots))
}
