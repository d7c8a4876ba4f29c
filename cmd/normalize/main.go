package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/Luismorlan/postmux/app_config"
	"github.com/Luismorlan/postmux/collector"
	"github.com/Luismorlan/postmux/normalizer"
	"github.com/Luismorlan/postmux/utils/dotenv"
	Flag "github.com/Luismorlan/postmux/utils/flag"
	Logger "github.com/Luismorlan/postmux/utils/log"
	"github.com/pkg/errors"
)

var (
	AppConfigPath *string
	Workers       *int
	Locale        *string
	ExtraFields   *string
)

func init() {
	AppConfigPath = flag.String("app_config_path", "", "optional path to postmux app config")
	Workers = flag.Int("workers", 0, "number of normalizing goroutines, overrides NORMALIZER_WORKERS")
	Locale = flag.String("locale", "", "IANA timezone for epoch timestamps, overrides LOCALE")
	ExtraFields = flag.String("extra_fields", "", "comma separated post fields to copy on top of the defaults")
}

func loadConfig() app_config.PostmuxAppConfig {
	config, _ := app_config.ParsePostmuxAppConfigBytes(nil)
	if *AppConfigPath != "" {
		config = app_config.ParsePostmuxAppConfig(*AppConfigPath)
	}
	if *Workers > 0 {
		config.NORMALIZER_WORKERS = *Workers
	}
	if *Locale != "" {
		config.LOCALE = *Locale
	}
	if *ExtraFields != "" {
		config.EXTRA_POST_FIELDS = append(config.EXTRA_POST_FIELDS, strings.Split(*ExtraFields, ",")...)
	}
	return config
}

// openInputs concatenates the files named on the command line, stdin when
// there is none.
func openInputs(paths []string) (io.Reader, func()) {
	if len(paths) == 0 {
		return os.Stdin, func() {}
	}
	readers := []io.Reader{}
	files := []*os.File{}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			Logger.Log.Fatal("cannot open input: ", err)
		}
		files = append(files, f)
		// A newline keeps the last value of a file apart from the next one.
		readers = append(readers, f, strings.NewReader("\n"))
	}
	return io.MultiReader(readers...), func() {
		for _, f := range files {
			f.Close()
		}
	}
}

// normalizeStream writes one JSON line per record normalized from r. Posts
// that fail are logged and counted, a write error stops the stream.
func normalizeStream(ctx context.Context, n *normalizer.Normalizer, r io.Reader, w io.Writer, workers int) (written, failed int, err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := bufio.NewWriter(w)
	encoder := json.NewEncoder(out)
	for result := range n.Parallel(ctx, collector.NewJSONSource(r), workers) {
		if result.Err != nil {
			failed++
			Logger.Log.WithField("seq", result.Seq).Errorln(result.Err)
			continue
		}
		if err := encoder.Encode(result.Record); err != nil {
			return written, failed, errors.Wrap(err, "cannot write record")
		}
		written++
	}
	if err := out.Flush(); err != nil {
		return written, failed, errors.Wrap(err, "cannot write records")
	}
	return written, failed, nil
}

// run returns the process exit code, so that deferred cleanups happen before
// main exits.
func run() int {
	config := loadConfig()
	locale, err := config.LoadLocation()
	if err != nil {
		Logger.Log.Errorln(err)
		return 2
	}
	n := normalizer.NewNormalizer(locale, config.EXTRA_POST_FIELDS, config.EXTRA_USER_FIELDS)

	input, closeInputs := openInputs(flag.Args())
	defer closeInputs()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	written, failed, err := normalizeStream(ctx, n, input, os.Stdout, config.NORMALIZER_WORKERS)
	Logger.Log.Infof("%d records written, %d failed", written, failed)
	if err != nil {
		Logger.Log.Errorln(err)
		return 2
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func main() {
	Flag.ParseFlags()
	Logger.InitLogger()
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
	os.Exit(run())
}
