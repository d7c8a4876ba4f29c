package main

import (
	"context"
	"flag"
	"time"

	"github.com/Luismorlan/postmux/app_config"
	"github.com/Luismorlan/postmux/export"
	"github.com/Luismorlan/postmux/store"
	"github.com/Luismorlan/postmux/utils"
	"github.com/Luismorlan/postmux/utils/dotenv"
	Flag "github.com/Luismorlan/postmux/utils/flag"
	. "github.com/Luismorlan/postmux/utils/log"
)

var (
	AppConfigPath *string
	Addr          *string
)

func init() {
	AppConfigPath = flag.String("app_config_path", "cmd/server/config.yaml", "path to postmux app config")
	Addr = flag.String("addr", ":8080", "address the export server listens on")
}

func cleanup() {
	utils.CloseProfiler()
	utils.CloseTracer()
	Log.Info("export server shutdown")
}

func main() {
	Flag.ParseFlags()
	InitLogger()
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
	utils.StartTracer()
	utils.StartProfiler()
	defer cleanup()

	config := app_config.ParsePostmuxAppConfig(*AppConfigPath)
	location, err := config.LoadLocation()
	if err != nil {
		Log.Fatal(err)
	}
	if location == nil {
		location = time.Local
	}

	recordStore, err := store.NewRecordStore(context.Background(), config.STORE)
	if err != nil {
		Log.Fatal(err)
	}

	server := &export.Server{
		Store:         recordStore,
		Location:      location,
		ExtraFields:   config.EXPORT_EXTRA_FIELDS,
		SelectedField: config.EXPORT_SELECTED_FIELD,
	}

	Log.Info("export server starts up")
	if err := server.Router().Run(*Addr); err != nil {
		Log.Fatal(err)
	}
}
