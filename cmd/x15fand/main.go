// Command x15fand runs the fan controller without the desktop front end and
// serves the control API on a local port.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/oklog/run"

	"github.com/cyear/nuc-fan/api"
	"github.com/cyear/nuc-fan/controller"
	"github.com/cyear/nuc-fan/hardware"
	"github.com/cyear/nuc-fan/models"
	"github.com/cyear/nuc-fan/sensors"
	"github.com/cyear/nuc-fan/services"
	"github.com/cyear/nuc-fan/utils"
)

type daemon struct {
	config  DaemonConfig
	regs    hardware.Transactor
	worker  *hardware.Worker
	fans    *controller.FanController
	tdp     *controller.TdpController
	monitor *services.MonitorService
}

func newDaemon(ctx context.Context, config DaemonConfig) (*daemon, error) {
	d := &daemon{config: config}

	var open hardware.SessionOpener
	if config.Simulated {
		log.Println("Running on the register simulator")
		open = hardware.NewSimulator().SessionOpener()
	} else {
		instance, err := sensors.ProbeControlMethod()
		if err != nil {
			return nil, err
		}
		log.Printf("Found control method instance %s", instance)
		open = hardware.OpenWmiSession
	}

	d.worker = hardware.NewWorker(open, 8)
	if err := d.worker.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting register worker: %w", err)
	}
	d.regs = hardware.NewAdhocChannel(open)

	d.fans = controller.NewFanController(d.regs, controller.LogNotifier{}, controller.Options{
		TickInterval: config.TickInterval,
		Advisor:      d.worker,
		Debug:        config.Debug,
	})
	settings := models.DefaultSettings()
	settings.CriticalTemp = config.CriticalTemp
	d.fans.UpdateSettings(settings)

	d.tdp = controller.NewTdpController(d.regs, controller.LogNotifier{})
	d.monitor = services.NewMonitorService(d.regs, d.fans, config.PollInterval)
	if config.Debug {
		d.monitor.OnData = func(info services.SystemInfo) {
			log.Printf("Telemetry: %+v", info.Speeds)
		}
	}
	return d, nil
}

func main() {
	configFile := flag.String("config", "", "Path to the daemon YAML config")
	simulated := flag.Bool("sim", false, "Use the in-memory register simulator")
	withShell := flag.Bool("shell", false, "Start the interactive debug shell")
	flag.Parse()

	filename := *configFile
	if filename == "" {
		dir, err := utils.GetConfigDir()
		if err != nil {
			log.Fatal(err)
		}
		filename = filepath.Join(dir, "x15fand.yaml")
	}
	config, err := loadConfig(filename, *configFile != "")
	if err != nil {
		log.Fatal(err)
	}
	if *simulated {
		config.Simulated = true
	}
	if config.CurvePath == "" {
		dir, err := utils.GetConfigDir()
		if err != nil {
			log.Fatal(err)
		}
		if config.CurvePath, err = utils.GetFanConfigPath(dir); err != nil {
			log.Fatal(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d, err := newDaemon(ctx, config)
	if err != nil {
		log.Fatalf("Unable to initialize the control method: %v", err)
	}

	var g run.Group

	// signals
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	// fan loop; automatic mode is restored when the group stops
	{
		loopCtx, loopCancel := context.WithCancel(ctx)
		g.Add(func() error {
			if config.AutoStart {
				data, err := utils.LoadFanConfig(config.CurvePath)
				if err != nil {
					return fmt.Errorf("autostart: %w", err)
				}
				if err := d.fans.Start(data); err != nil {
					return fmt.Errorf("autostart: %w", err)
				}
			}
			<-loopCtx.Done()
			return nil
		}, func(error) {
			loopCancel()
			d.fans.Shutdown()
		})
	}

	// telemetry
	{
		g.Add(func() error {
			d.monitor.Start()
			<-ctx.Done()
			return nil
		}, func(error) {
			d.monitor.Stop()
			cancel()
		})
	}

	// control api
	{
		srv := &api.Server{Fans: d.fans, Power: d.tdp, Regs: d.regs, CurvePath: config.CurvePath}
		ln, err := net.Listen("tcp", config.Listen)
		if err != nil {
			log.Fatalf("Unable to listen on %s: %v", config.Listen, err)
		}
		server := &http.Server{Handler: srv.Router(), ReadHeaderTimeout: 5 * time.Second}
		g.Add(func() error {
			log.Printf("Control API listening on %s", ln.Addr())
			if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}, func(error) {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			server.Shutdown(shutdownCtx)
		})
	}

	if *withShell {
		shell := newShell(d)
		g.Add(func() error {
			shell.Start()
			return nil
		}, func(error) {
			shell.Stop()
		})
	}

	err = g.Run()
	d.worker.Close()
	var sigErr run.SignalError
	if err != nil && !errors.As(err, &sigErr) {
		log.Fatal(err)
	}
	log.Println("Automatic fan mode restored, exiting")
}
