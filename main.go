package main

import (
	"embed"
	"flag"
	"log"
	goruntime "runtime"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/menu/keys"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/runtime"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	simulated := flag.Bool("sim", goruntime.GOOS != "windows", "Use the in-memory register simulator")
	flag.Parse()

	// Create an instance of the app structure
	app := NewApp(*simulated)

	appMenu := menu.NewMenu()
	fanMenu := appMenu.AddSubmenu("Fan")
	fanMenu.AddText("Show", nil, func(_ *menu.CallbackData) {
		runtime.WindowShow(app.ctx)
	})
	fanMenu.AddText("Start", keys.CmdOrCtrl("r"), func(_ *menu.CallbackData) {
		app.startSaved()
	})
	fanMenu.AddText("Stop", keys.CmdOrCtrl("s"), func(_ *menu.CallbackData) {
		app.StopFanControl()
	})
	fanMenu.AddSeparator()
	fanMenu.AddText("Quit", keys.CmdOrCtrl("q"), func(_ *menu.CallbackData) {
		// shutdown restores automatic fan mode before the process exits.
		app.Notify("Exiting safely")
		runtime.Quit(app.ctx)
	})

	err := wails.Run(&options.App{
		Title:  appName,
		Width:  960,
		Height: 640,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		Menu:              appMenu,
		BackgroundColour:  &options.RGBA{R: 18, G: 18, B: 18, A: 125},
		HideWindowOnClose: true,
		OnStartup:         app.startup,
		OnShutdown:        app.shutdown,
		Bind: []interface{}{
			app,
		},
	})

	if err != nil {
		log.Fatal(err)
	}
}
