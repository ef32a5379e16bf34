package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	health "github.com/hellofresh/health-go/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sebastienferry/mongolastic/internal/pkg/commands"
	"github.com/sebastienferry/mongolastic/internal/pkg/log"
	"github.com/sebastienferry/mongolastic/internal/pkg/metrics"
)

// Pinger is any dependency the status endpoint checks
type Pinger interface {
	Ping(ctx context.Context) error
}

type Api struct {
	Source      Pinger
	Destination Pinger
	Commands    chan<- commands.Command
}

func NewApi(source Pinger, destination Pinger, commands chan<- commands.Command) *Api {
	return &Api{
		Source:      source,
		Destination: destination,
		Commands:    commands,
	}
}

func (a *Api) Router() (*gin.Engine, error) {

	status, err := a.CreateHealthCheckHandler()
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	router.GET("/status", gin.WrapH(status))

	// Commands api
	cmdsApi := NewCommandApi(a.Commands)
	router.POST("/command/pause", cmdsApi.Pause)
	router.POST("/command/resume", cmdsApi.Resume)
	router.POST("/command/stop", cmdsApi.Stop)

	return router, nil
}

// StartApi serves until the context is cancelled
func (a *Api) StartApi(ctx context.Context, listen string) error {

	if !log.IsDebug() {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := a.Router()
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:    listen,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdown); err != nil {
			log.Warn("error shutting down the api: ", err)
		}
	}()

	log.Info("api listening on ", listen)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *Api) CreateHealthCheckHandler() (http.Handler, error) {

	h, err := health.New(health.WithComponent(health.Component{
		Name:    "mongolastic",
		Version: "v1.0",
	}), health.WithChecks(
		health.Config{
			Name:      "mongodb-source",
			Timeout:   time.Second * 5,
			SkipOnErr: false,
			Check:     a.Source.Ping,
		},
		health.Config{
			Name:      "destination",
			Timeout:   time.Second * 5,
			SkipOnErr: true,
			Check:     a.Destination.Ping,
		},
	))
	if err != nil {
		return nil, err
	}
	return h.Handler(), nil
}
