package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/SagenKoder/hprof-parser/internal/parser/hprof"
	"github.com/SagenKoder/hprof-parser/internal/storage"
	"github.com/SagenKoder/hprof-parser/pkg/compression"
	"github.com/SagenKoder/hprof-parser/pkg/config"
	"github.com/SagenKoder/hprof-parser/pkg/filter"
)

// inputFlags are shared by the commands that read a dump.
type inputFlags struct {
	key         string
	storageType string
	excludeJDK  bool
	exclude     []string
}

func (in *inputFlags) register(flags *pflag.FlagSet) {
	flags.StringVarP(&in.key, "input", "i", "", "Heap dump path or object key")
	flags.StringVar(&in.key, "key", "", "Alias of --input")
	flags.StringVar(&in.storageType, "storage", "", "Storage type: local or cos (overrides config)")
	flags.BoolVar(&in.excludeJDK, "exclude-jdk", false, "Drop instances and object arrays of JDK classes")
	flags.StringSliceVar(&in.exclude, "exclude", nil, "Drop instances and object arrays of classes with these name prefixes")
}

// withFilter wraps h in a class filter when any exclusion is requested.
// The returned filter handler is nil otherwise.
func withFilter(h hprof.RecordHandler, in *inputFlags) (hprof.RecordHandler, *filter.Handler) {
	f := filter.NewClassFilter()
	if in.excludeJDK {
		f.Exclude(filter.CategoryJDK)
	}
	f.ExcludePrefix(in.exclude...)
	if !f.Active() {
		return h, nil
	}
	fh := filter.NewHandler(h, f)
	return fh, fh
}

// openInput opens the dump named by the flags through the configured
// source and decompresses it.
func openInput(ctx context.Context, c *config.Config, in *inputFlags) (io.ReadCloser, compression.Type, error) {
	if in.key == "" {
		return nil, compression.TypeNone, fmt.Errorf("an input dump is required (--input or --key)")
	}

	storageCfg := c.Storage
	if in.storageType != "" {
		storageCfg.Type = in.storageType
	}
	if err := storage.ValidateConfig(&storageCfg); err != nil {
		return nil, compression.TypeNone, err
	}

	src, err := storage.NewSource(&storageCfg)
	if err != nil {
		return nil, compression.TypeNone, err
	}

	GetLogger().Debug("Opening %s", src.URL(in.key))
	return storage.OpenDump(ctx, src, in.key)
}

// newParser builds a decoder from the parser configuration.
func newParser(c *config.Config) *hprof.Parser {
	return hprof.NewParser(&hprof.ParserOptions{
		ResolveCacheSize: c.Parser.ResolveCacheSize,
		MaxBodySize:      c.Parser.MaxBodySize,
		Logger:           GetLogger(),
	})
}
