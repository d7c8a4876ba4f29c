package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/Luismorlan/postmux/app_config"
	"github.com/Luismorlan/postmux/collector"
	"github.com/Luismorlan/postmux/ingest"
	"github.com/Luismorlan/postmux/ingest/modules"
	"github.com/Luismorlan/postmux/normalizer"
	"github.com/Luismorlan/postmux/store"
	"github.com/Luismorlan/postmux/utils/dotenv"
	Flag "github.com/Luismorlan/postmux/utils/flag"
	Logger "github.com/Luismorlan/postmux/utils/log"
	twitterscraper "github.com/n0madic/twitter-scraper"
)

const (
	SourceFile    = "file"
	SourceSQS     = "sqs"
	SourceScraper = "scraper"

	defaultStatsdAddr = "127.0.0.1:8125"
	sqsWaitSeconds    = 20
)

var (
	AppConfigPath *string
	SourceKind    *string
	InputPath     *string
	ScrapeUsers   *string
	MaxPerUser    *int
	MaxEmptyPolls *int

	// Configuration to customize binary startup.
	AppConfig app_config.PostmuxAppConfig
)

// init() will always be called on before the execution of main function.
func init() {
	AppConfigPath = flag.String("app_config_path", "cmd/ingest/config.yaml", "path to postmux app config")
	SourceKind = flag.String("source", SourceFile, "'file', 'sqs' or 'scraper'")
	InputPath = flag.String("input", "", "JSON stream read by the file source, stdin if empty")
	ScrapeUsers = flag.String("users", "", "comma separated handles read by the scraper source")
	MaxPerUser = flag.Int("max_per_user", 100, "tweets fetched per handle by the scraper source")
	MaxEmptyPolls = flag.Int("max_empty_polls", 0, "empty receives after which the sqs source stops, 0 never stops")
}

func NewDogStatsdClient() *statsd.Client {
	addr := os.Getenv("DOGSTATSD_ADDR")
	if addr == "" {
		addr = defaultStatsdAddr
	}
	statsd, err := statsd.New(addr)
	if err != nil {
		panic(err)
	}
	return statsd
}

func NewSource(ctx context.Context) (normalizer.Source, func()) {
	switch *SourceKind {
	case SourceFile:
		if *InputPath == "" {
			return collector.NewJSONSource(os.Stdin), func() {}
		}
		f, err := os.Open(*InputPath)
		if err != nil {
			Logger.Log.Fatal("cannot open input: ", err)
		}
		return collector.NewJSONSource(f), func() { f.Close() }
	case SourceSQS:
		source, err := collector.NewSQSSource(ctx, os.Getenv("SQS_QUEUE_NAME"), sqsWaitSeconds)
		if err != nil {
			Logger.Log.Fatal(err)
		}
		source.MaxEmptyPolls = *MaxEmptyPolls
		return source, func() {}
	case SourceScraper:
		if *ScrapeUsers == "" {
			Logger.Log.Fatal("-users is required by the scraper source")
		}
		scraper := twitterscraper.New()
		return collector.NewScraperSource(scraper, strings.Split(*ScrapeUsers, ","), *MaxPerUser), func() {}
	}
	Logger.Log.Fatalf("unknown source %q", *SourceKind)
	return nil, nil
}

func main() {
	Flag.ParseFlags()
	Logger.InitLogger()
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
	AppConfig = app_config.ParsePostmuxAppConfig(*AppConfigPath)
	locale, err := AppConfig.LoadLocation()
	if err != nil {
		Logger.Log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recordStore, err := store.NewRecordStore(ctx, AppConfig.STORE)
	if err != nil {
		Logger.Log.Fatal(err)
	}
	links, err := store.NewLinkQueueFromEnv(ctx)
	if err != nil {
		Logger.Log.Fatal(err)
	}
	dogstatsd := NewDogStatsdClient()
	defer dogstatsd.Close()

	source, closeSource := NewSource(ctx)
	defer closeSource()

	eventbus := ingest.NewEventBus()
	engineCtx, cancel := context.WithCancel(context.Background())

	// Initialize all engine modules here.
	engineModules := []ingest.Module{
		// Normalizer turns raw posts into records, failures go to dead letters.
		modules.NewNormalizer(
			modules.NormalizerConfig{Name: "normalizer"},
			normalizer.NewNormalizer(locale, AppConfig.EXTRA_POST_FIELDS, AppConfig.EXTRA_USER_FIELDS),
			eventbus,
		),
		// Persister stores records and queues the ones with links to resolve.
		modules.NewPersister(modules.PersisterConfig{Name: "persister"}, recordStore, links, eventbus),
		// Reporter reports the record states to datadog for monitoring purpose.
		modules.NewReporter(modules.ReporterConfig{Name: "reporter"}, dogstatsd, eventbus),
	}

	engine := ingest.NewEngine(engineModules, engineCtx, cancel, eventbus)
	if err := engine.Start(); err != nil {
		Logger.Log.Fatal(err)
	}

	// blocking call, returns once the source is exhausted or on signal.
	n, err := ingest.NewReader(source, eventbus).Run(ctx)
	if err != nil && ctx.Err() == nil {
		Logger.Log.Errorln("reader stopped:", err)
	}
	Logger.Log.Infof("%d posts read", n)

	engine.Shutdown()
	if redisLinks, ok := links.(*store.RedisLinkQueue); ok {
		if pending, err := redisLinks.Pending(context.Background()); err == nil {
			Logger.Log.Infof("%d records waiting for link resolution", pending)
		}
	}
	Logger.Log.Info("engine stopped execution.")
}
