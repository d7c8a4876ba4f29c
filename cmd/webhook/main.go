package main

import (
	"context"
	"flag"
	"net/http"

	"github.com/Luismorlan/postmux/app_config"
	"github.com/Luismorlan/postmux/normalizer"
	"github.com/Luismorlan/postmux/store"
	"github.com/Luismorlan/postmux/utils"
	"github.com/Luismorlan/postmux/utils/dotenv"
	Flag "github.com/Luismorlan/postmux/utils/flag"
	Logger "github.com/Luismorlan/postmux/utils/log"
	"github.com/gin-gonic/gin"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"
)

var (
	AppConfigPath *string
)

func init() {
	AppConfigPath = flag.String("app_config_path", "cmd/webhook/config.yaml", "path to postmux app config")
}

func main() {
	Flag.ParseFlags()
	Logger.InitLogger()
	if err := dotenv.LoadDotEnvs(); err != nil {
		panic(err)
	}
	utils.StartTracer()
	defer utils.CloseTracer()

	config := app_config.ParsePostmuxAppConfig(*AppConfigPath)
	locale, err := config.LoadLocation()
	if err != nil {
		Logger.Log.Fatal(err)
	}
	ctx := context.Background()
	recordStore, err := store.NewRecordStore(ctx, config.STORE)
	if err != nil {
		Logger.Log.Fatal(err)
	}
	links, err := store.NewLinkQueueFromEnv(ctx)
	if err != nil {
		Logger.Log.Fatal(err)
	}

	router := gin.Default()
	router.Use(gintrace.Middleware(*Flag.ServiceName))

	// Add a debug route for testing and health check
	router.GET("/webhook/ping", func(c *gin.Context) {
		c.JSON(http.StatusAccepted, "pong")
	})

	AddTwitterWebhook(
		router.Group("/webhook"),
		normalizer.NewNormalizer(locale, config.EXTRA_POST_FIELDS, config.EXTRA_USER_FIELDS),
		recordStore,
		links,
	)
	// Additional webhooks should be added below this line

	Logger.Log.Info("===== Webhook Server Started =====")
	router.Run(":7070")
}
