package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	calendarx "github.com/pawdesk/groomflow/agent/calendar"
	contractx "github.com/pawdesk/groomflow/agent/contract"
	enginex "github.com/pawdesk/groomflow/agent/engine"
	extractx "github.com/pawdesk/groomflow/agent/extract"
	pricingx "github.com/pawdesk/groomflow/agent/pricing"
	recordx "github.com/pawdesk/groomflow/agent/record"
	configx "github.com/pawdesk/groomflow/pkg/config"
	courierx "github.com/pawdesk/groomflow/pkg/courier"
	_ "github.com/pawdesk/groomflow/pkg/logger/autoload"
	openrouterx "github.com/pawdesk/groomflow/pkg/openrouter"
)

type AppConfig struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" split_words:"true" default:":8080"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("")

	openRouterCfg := configx.MustNew[openrouterx.Config]("OPENROUTER")
	if err := openrouterx.Probe(ctx, *openRouterCfg); err != nil {
		log.Fatal().Err(err).Msg("openrouter credential probe failed")
	}
	chatModel, err := openRouterCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("build chat model")
	}

	extractor, err := extractx.NewLLMExtractor(ctx, chatModel)
	if err != nil {
		log.Fatal().Err(err).Msg("build extractor")
	}

	store, err := recordx.NewPostgresStore(*configx.MustNew[recordx.Config]("RECORD"))
	if err != nil {
		log.Fatal().Err(err).Msg("open record store")
	}

	calendar, err := calendarx.NewClient(*configx.MustNew[calendarx.Config]("CALENDAR"))
	if err != nil {
		log.Fatal().Err(err).Msg("build calendar client")
	}

	courier := courierx.MustNew(*configx.MustNew[courierx.Config]("COURIER"))
	calc := pricingx.NewCalculator(*configx.MustNew[pricingx.Config]("PRICING"))

	eng, err := enginex.New(ctx, *configx.MustNew[enginex.Config]("ENGINE"),
		extractor, calendar, store, courier, calc)
	if err != nil {
		log.Fatal().Err(err).Msg("build engine")
	}
	go eng.RunSweeper(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/inbound", func(c *gin.Context) {
		var in contractx.Inbound
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		out, err := eng.HandleMessage(c.Request.Context(), in)
		switch {
		case errors.Is(err, contractx.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case err != nil:
			c.JSON(http.StatusBadGateway, gin.H{"error": "turn failed"})
		default:
			c.JSON(http.StatusOK, out)
		}
	})

	srv := &http.Server{Addr: appCfg.ListenAddr, Handler: router}
	go func() {
		log.Info().Str("addr", appCfg.ListenAddr).Msg("inbound listener started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("inbound listener failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown incomplete")
	}
	log.Info().Msg("bye")
}
