package main

import (
	"context"
	"embed"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/logger"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/menu/keys"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/linux"
	"github.com/wailsapp/wails/v2/pkg/options/mac"
	"github.com/wailsapp/wails/v2/pkg/options/windows"
	wruntime "github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"github.com/MJE43/arcade-session-go/bindings"
	"github.com/MJE43/arcade-session-go/internal/app"
	"github.com/MJE43/arcade-session-go/internal/config"
	"github.com/MJE43/arcade-session-go/internal/logging"
	"github.com/MJE43/arcade-session-go/internal/session"
)

//go:embed all:frontend/dist
var assets embed.FS

const (
	appConfigDirName = "arcade-session"
	configFileName   = "arcade.yaml"
	identityFileName = "identity.json"
)

var (
	appCtx   context.Context
	appCtxMu sync.RWMutex
)

func main() {
	dataDir := appDataDir()
	cfg, err := config.Load(optionalFile(filepath.Join(dataDir, configFileName)), filepath.Join(dataDir, ".env"), ".env")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Identity.FallbackPath == "" {
		cfg.Identity.FallbackPath = filepath.Join(dataDir, identityFileName)
	}
	zl, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	zl.Info("starting arcade desktop", zap.String("go", runtime.Version()), zap.String("data_dir", dataDir))

	sink := bindings.NewWailsSink(nil)
	a, err := app.New(cfg, zl, app.Options{Sinks: []session.Sink{sink}})
	if err != nil {
		zl.Fatal("arcade init failed", zap.Error(err))
	}
	games := bindings.NewGameModule(a, sink)

	startup := func(ctx context.Context) {
		setAppContext(ctx)
		games.Startup(ctx)
	}
	beforeClose := func(ctx context.Context) (prevent bool) {
		games.Shutdown(ctx)
		setAppContext(nil)
		zl.Info("application is closing")
		return false
	}

	if err := wails.Run(&options.App{
		Title:            "Arcade",
		Width:            1024,
		Height:           768,
		MinWidth:         800,
		MinHeight:        600,
		WindowStartState: options.Normal,
		BackgroundColour: &options.RGBA{R: 27, G: 38, B: 54, A: 255},

		AssetServer: &assetserver.Options{
			Assets: assets,
		},

		OnStartup:     startup,
		OnBeforeClose: beforeClose,
		OnShutdown: func(ctx context.Context) {
			_ = zl.Sync()
		},

		Menu: buildAppMenu(),
		Bind: []interface{}{games},

		LogLevel:           logger.INFO,
		LogLevelProduction: logger.ERROR,

		EnableDefaultContextMenu: false,
		ErrorFormatter: func(err error) any {
			if err == nil {
				return nil
			}
			return err.Error()
		},

		SingleInstanceLock: &options.SingleInstanceLock{
			UniqueId: "5b1f0c3e-arcade-session-desktop",
			OnSecondInstanceLaunch: func(data options.SecondInstanceData) {
				zl.Info("second instance launch prevented", zap.Strings("args", data.Args))
			},
		},

		DragAndDrop: &options.DragAndDrop{
			EnableFileDrop:     false,
			DisableWebViewDrop: true,
		},

		Windows: &windows.Options{
			Theme:           windows.SystemDefault,
			WindowClassName: "ArcadeWindow",
		},
		Mac: &mac.Options{
			About: &mac.AboutInfo{
				Title:   "Arcade",
				Message: "Card, mining, slots, wheel and plinko rounds settled by the game server.",
			},
		},
		Linux: &linux.Options{
			ProgramName:      "arcade",
			WebviewGpuPolicy: linux.WebviewGpuPolicyAlways,
		},
	}); err != nil {
		zl.Fatal("wails run failed", zap.Error(err))
	}
}

// appDataDir returns an OS-appropriate writable directory.
func appDataDir() string {
	base := "."
	if d, err := os.UserConfigDir(); err == nil && d != "" {
		base = filepath.Join(d, appConfigDirName)
	} else if h, err := os.UserHomeDir(); err == nil && h != "" {
		base = filepath.Join(h, "."+appConfigDirName)
	}
	if err := os.MkdirAll(base, 0o700); err != nil {
		log.Printf("appdata mkdir failed: %v; using working directory", err)
		return "."
	}
	return base
}

// optionalFile returns path if it exists, so a missing config file means
// defaults rather than an error.
func optionalFile(path string) string {
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func buildAppMenu() *menu.Menu {
	rootMenu := menu.NewMenu()

	if runtime.GOOS == "darwin" {
		if appMenu := menu.AppMenu(); appMenu != nil {
			rootMenu.Append(appMenu)
		}
	}

	fileMenu := menu.NewMenu()
	fileMenu.AddText("Quit", keys.CmdOrCtrl("q"), func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			wruntime.Quit(ctx)
		})
	})
	rootMenu.Append(menu.SubMenu("File", fileMenu))

	viewMenu := menu.NewMenu()
	viewMenu.AddText("Reload Frontend", keys.CmdOrCtrl("r"), func(_ *menu.CallbackData) {
		withAppContext(func(ctx context.Context) {
			wruntime.WindowReloadApp(ctx)
		})
	})
	rootMenu.Append(menu.SubMenu("View", viewMenu))

	return rootMenu
}

func setAppContext(ctx context.Context) {
	appCtxMu.Lock()
	defer appCtxMu.Unlock()
	appCtx = ctx
}

func withAppContext(action func(context.Context)) {
	appCtxMu.RLock()
	ctx := appCtx
	appCtxMu.RUnlock()
	if ctx == nil {
		return
	}
	action(ctx)
}
