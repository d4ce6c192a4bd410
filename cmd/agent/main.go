// cmd/agent/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"print-agent/internal/config"
	"print-agent/internal/handler"
	"print-agent/internal/receipt"
	"print-agent/internal/routes"
	"print-agent/internal/session"
	"print-agent/internal/transport"
	"print-agent/internal/utils"
)

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server

	manager   *transport.Manager
	session   *session.Session
	eventBus  *handler.EventBus
	bridge    *handler.SessionEventBridge
	wsHandler *handler.WebSocketHandler
}

func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "print-agent")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeSession(); err != nil {
		return nil, fmt.Errorf("failed to initialize printer session: %w", err)
	}

	if err := app.initializeServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return app, nil
}

// initializeSession wires the transport, formatter, sinks and the session.
func (app *Application) initializeSession() error {
	layout := receipt.Layout{
		ShopName:     app.config.Printer.Layout.ShopName,
		HeaderLines:  app.config.Printer.Layout.HeaderLines,
		FooterLines:  app.config.Printer.Layout.FooterLines,
		QRInviteLine: app.config.Printer.QR.InviteLine,
		QRContent:    app.config.Printer.QR.Content,
		QRModuleSize: app.config.Printer.QR.ModuleSize,
		DrawerPin:    app.config.Printer.DrawerPin,
	}

	formatter := receipt.NewFormatter(layout)

	renderer, err := receipt.NewHTMLRenderer(layout)
	if err != nil {
		return fmt.Errorf("failed to build html renderer: %w", err)
	}

	app.manager = transport.NewManager(&app.config.Printer.USB, transport.AutoPicker{}, app.logger)

	app.eventBus = handler.NewEventBus(app.logger)
	go app.eventBus.Start()

	app.wsHandler = handler.NewWebSocketHandler(app.eventBus, app.logger)
	app.bridge = handler.NewSessionEventBridge(app.eventBus, app.logger)

	primary := session.NewUsbEscPosSink(app.manager, formatter)
	fallback := session.NewHtmlPrintSink(renderer, app.wsHandler)

	app.session = session.NewSession(app.manager, formatter, primary, fallback, app.logger)
	app.session.SetOnStateChange(app.bridge.OnStateChanged)

	app.logger.Info("Printer session initialized",
		zap.Bool("usb_supported", app.manager.Supported()),
	)
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() error {
	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		app.session,
		app.manager,
		app.bridge,
		app.wsHandler,
	)

	router := routerManager.SetupRouter()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)

	return nil
}

// startDeviceMonitor polls the USB bus while a printer is held. A held gousb
// handle does not observe an unplug until the next transfer, so the monitor
// notices losses between prints and pushes them to the session and the UI.
func (app *Application) startDeviceMonitor(done <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	app.logger.Info("Device monitor started")

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		if !app.session.State().IsConnected {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		present, err := app.manager.DevicePresent(ctx)
		cancel()
		if err != nil {
			app.logger.Warn("Device presence check failed", zap.Error(err))
			continue
		}

		if !present {
			const reason = "usb printer unplugged"
			app.session.NotifyDeviceLost(reason)
			app.bridge.OnDeviceLost(reason)
		}
	}
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "print-agent")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	app.session.Disconnect()
	app.logger.Info("Printer released")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

func (app *Application) Start() error {
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Silent reconnect to the last authorized printer. Finding none is the
	// normal first-run state.
	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	app.session.Start(startCtx)
	cancel()

	monitorDone := make(chan struct{})
	go app.startDeviceMonitor(monitorDone)

	app.waitForShutdown()
	close(monitorDone)

	return nil
}
