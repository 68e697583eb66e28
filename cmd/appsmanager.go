package cmd

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	RestApp = "rest"
)

// App is a long running component. Start blocks until the app stops.
type App interface {
	Start()
	Stop() error
}

type AppsManager struct {
	apps map[string]App
	wg   *sync.WaitGroup

	logger *zap.Logger
}

func NewAppsManager(logger *zap.Logger) *AppsManager {
	return &AppsManager{
		apps:   make(map[string]App),
		wg:     &sync.WaitGroup{},
		logger: logger,
	}
}

func (am *AppsManager) Register(name string, app App) {
	am.apps[name] = app
}

func (am *AppsManager) Run(name string) {
	app, ok := am.apps[name]
	if !ok {
		return
	}
	am.logger.Info("App started", zap.String("name", name))
	app.Start()
}

func (am *AppsManager) Stop(name string) error {
	app, ok := am.apps[name]
	if !ok {
		return nil
	}
	err := app.Stop()
	am.logger.Info("App stopped", zap.String("name", name))
	return err
}

func (am *AppsManager) RunAll() {
	for name, app := range am.apps {
		am.wg.Add(1)
		name := name
		go func(app App) {
			defer am.wg.Done()
			am.logger.Info("App started", zap.String("name", name))
			app.Start()
		}(app)
	}
}

func (am *AppsManager) StopAll() error {
	var err error
	for name, app := range am.apps {
		am.logger.Info("App stopped", zap.String("name", name))
		err = multierr.Append(err, app.Stop())
	}
	return err
}

// Wait blocks until every app started by RunAll has returned.
func (am *AppsManager) Wait() {
	am.wg.Wait()
}

func (am *AppsManager) WaitForShutdown() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	if err := am.StopAll(); err != nil {
		am.logger.Error("Failed to stop apps", zap.Error(err))
	}
	am.wg.Wait()
}
