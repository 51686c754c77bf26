package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/cyear/nuc-fan/controller"
	"github.com/cyear/nuc-fan/hardware"
	"github.com/cyear/nuc-fan/models"
	"github.com/cyear/nuc-fan/sensors"
	"github.com/cyear/nuc-fan/services"
	"github.com/cyear/nuc-fan/utils"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

const appName = "NUC X15 Fan Control"

// Front end event names.
const (
	eventNotification = "notification"
	eventTelemetry    = "telemetry"
)

// App struct holds the application's state and dependencies.
type App struct {
	ctx       context.Context
	simulated bool

	regs          hardware.Transactor
	worker        *hardware.Worker
	fanController *controller.FanController
	tdp           *controller.TdpController
	monitor       *services.MonitorService

	settingsMu   sync.RWMutex
	settings     models.Settings
	settingsPath string
	configDir    string
	debug        bool
}

// NewApp creates a new App application struct. With simulated set, every
// register access goes to an in-memory register file.
func NewApp(simulated bool) *App {
	return &App{simulated: simulated}
}

// Notify implements controller.Notifier by forwarding to the front end.
func (a *App) Notify(message string) {
	log.Printf("Notification: %s", message)
	if a.ctx != nil {
		runtime.EventsEmit(a.ctx, eventNotification, message)
	}
}

// startup is called when the app starts.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	baseDir, err := utils.GetBaseDir()
	if err != nil {
		log.Printf("Warning: could not determine executable path: %v", err)
	}
	a.settingsPath = filepath.Join(baseDir, "settings.json")

	a.settingsMu.Lock()
	if a.settings, err = utils.LoadSettings(a.settingsPath); err != nil {
		log.Printf("Could not load settings, creating default: %v", err)
		if err := utils.SaveSettings(a.settingsPath, a.settings); err != nil {
			log.Printf("Warning: failed to save default settings: %v", err)
		}
	}
	settings := a.settings
	a.settingsMu.Unlock()

	if a.configDir, err = utils.GetConfigDir(); err != nil {
		log.Printf("Warning: %v", err)
	}
	if a.debug, err = utils.IsDebug(a.configDir); err != nil {
		log.Printf("Warning: %v", err)
	}

	if !isElevated() {
		runtime.MessageDialog(a.ctx, runtime.MessageDialogOptions{
			Type:    runtime.WarningDialog,
			Title:   "Administrator rights required",
			Message: "The fan control method is only reachable with administrator rights. Please restart the program as Administrator.",
		})
	}

	if err := a.initHardware(ctx); err != nil {
		runtime.MessageDialog(a.ctx, runtime.MessageDialogOptions{
			Type:    runtime.ErrorDialog,
			Title:   "Critical Driver Error",
			Message: fmt.Sprintf("The fan control method could not be reached.\n\n%v", err),
		})
		os.Exit(1)
	}

	a.fanController = controller.NewFanController(a.regs, a, controller.Options{
		Advisor: a.worker,
		Debug:   a.debug,
	})
	a.fanController.UpdateSettings(settings)
	a.tdp = controller.NewTdpController(a.regs, a)

	a.monitor = services.NewMonitorService(a.regs, a.fanController, 0)
	a.monitor.OnData = func(info services.SystemInfo) {
		runtime.EventsEmit(a.ctx, eventTelemetry, info)
	}
	a.monitor.Start()

	a.Notify("The window can be hidden to the tray; use Stop before quitting")
}

// initHardware opens the register channels: the dedicated worker session and
// the ad-hoc channel used by every periodic or one-shot operation.
func (a *App) initHardware(ctx context.Context) error {
	var open hardware.SessionOpener
	if a.simulated {
		log.Println("Running on the register simulator")
		open = hardware.NewSimulator().SessionOpener()
	} else {
		if chassis, err := sensors.DetectChassis(); err != nil {
			log.Printf("Warning: could not identify chassis: %v", err)
		} else if !chassis.Supported() {
			log.Printf("Warning: %s is not a known X15 chassis, register map may not apply", chassis)
		}
		instance, err := sensors.ProbeControlMethod()
		if err != nil {
			return err
		}
		log.Printf("Found control method instance %s", instance)
		open = hardware.OpenWmiSession
	}

	a.worker = hardware.NewWorker(open, 8)
	if err := a.worker.Start(ctx); err != nil {
		return fmt.Errorf("starting register worker: %w", err)
	}
	a.regs = hardware.NewAdhocChannel(open)
	return nil
}

// shutdown is called when the app is closing.
func (a *App) shutdown(ctx context.Context) {
	log.Println("Shutting down...")
	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.fanController != nil {
		a.fanController.Shutdown()
	}
	if a.worker != nil {
		a.worker.Close()
	}
}

// StartFanControl starts the control loop with the curves from the front end.
func (a *App) StartFanControl(data models.FanData) error {
	return a.fanController.Start(data)
}

// StopFanControl stops the loop; automatic mode is restored in the background.
func (a *App) StopFanControl() {
	a.fanController.Stop()
}

// GetState returns the current state of the fan controller to the frontend.
func (a *App) GetState() controller.PublicState {
	return a.fanController.GetPublicState()
}

// GetFanSpeeds returns live tachometer and temperature readings.
func (a *App) GetFanSpeeds() (models.FanSpeeds, error) {
	return controller.GetFanSpeeds(a.regs)
}

// GetTdp returns the current power limits.
func (a *App) GetTdp() (models.Tdp, error) {
	return a.tdp.GetTdp()
}

// SetTdp writes new power limits.
func (a *App) SetTdp(t models.Tdp) error {
	return a.tdp.SetTdp(t)
}

// SaveFanConfig persists the curves edited in the front end.
func (a *App) SaveFanConfig(data models.FanData) error {
	path, err := utils.GetFanConfigPath(a.configDir)
	if err != nil {
		return err
	}
	if err := utils.SaveFanConfig(path, data); err != nil {
		return err
	}
	log.Printf("Fan config saved to %s", path)
	return nil
}

// LoadFanConfig returns the saved curves.
func (a *App) LoadFanConfig() (models.FanData, error) {
	path, err := utils.GetFanConfigPath(a.configDir)
	if err != nil {
		return models.FanData{}, err
	}
	data, err := utils.LoadFanConfig(path)
	if err != nil {
		return models.FanData{}, err
	}
	log.Printf("Fan config loaded from %s", path)
	return data, nil
}

// IsDebug tells the front end whether to show the TDP window.
func (a *App) IsDebug() bool {
	return a.debug
}

// GetSettings returns the current application settings to the frontend.
func (a *App) GetSettings() models.Settings {
	a.settingsMu.RLock()
	defer a.settingsMu.RUnlock()
	return a.settings
}

// SaveAppSettings saves the provided settings from the frontend. Missing or
// unsafe safety fields are normalized before they are applied.
func (a *App) SaveAppSettings(newSettings models.Settings) error {
	newSettings = newSettings.Normalize()

	a.settingsMu.Lock()
	defer a.settingsMu.Unlock()
	a.settings = newSettings
	a.fanController.UpdateSettings(newSettings)

	if err := setAutoStart(newSettings.AutoStart); err != nil {
		log.Printf("Error setting auto-start: %v", err)
		return fmt.Errorf("failed to update auto-start setting: %w", err)
	}

	return utils.SaveSettings(a.settingsPath, newSettings)
}

// startSaved starts the loop with the curves on disk. Used by the menu.
func (a *App) startSaved() {
	data, err := a.LoadFanConfig()
	if err != nil {
		runtime.MessageDialog(a.ctx, runtime.MessageDialogOptions{
			Type:    runtime.ErrorDialog,
			Title:   "No fan curve",
			Message: err.Error(),
		})
		return
	}
	if err := a.StartFanControl(data); err != nil {
		log.Printf("Error starting fan control: %v", err)
	}
}
