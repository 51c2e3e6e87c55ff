package commands

import (
	"fmt"
	"os"

	"github.com/ardanlabs/conf/v2"
	"github.com/artemp/render-stack/internal/expiry"
	"github.com/artemp/render-stack/internal/storage"
	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Config is the storage node's configuration surface.
type Config struct {
	conf.Version
	Root       string `conf:"default:./data,env:STORAGE_ROOT"`
	Addr       string `conf:"default:0.0.0.0:8081,env:STORAGE_ADDR"`
	ExpiryRoot string `conf:"default:./data/expiry,env:STORAGE_EXPIRY_ROOT"`
}

func Run(log *zap.SugaredLogger) error {
	var cfg Config
	cfg.Version = conf.Version{SVN: "render-stack-storagenode", Desc: "tile storage node"}
	if err := conf.Parse(os.Args[1:], "STORAGE", &cfg); err != nil {
		if err == conf.ErrHelpWanted {
			usage, uerr := conf.Usage("STORAGE", &cfg)
			if uerr != nil {
				return uerr
			}
			fmt.Println(usage)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	expirySvc := expiry.NewService(cfg.ExpiryRoot, log)
	node := storage.NewNode(cfg.Root, expirySvc, log)

	e := echo.New()
	e.JSONSerializer = storage.JSONSerializer{}
	e.Use(middleware.Recover())
	e.Use(middleware.RemoveTrailingSlash())
	p := prometheus.NewPrometheus("storagenode", nil)
	p.Use(e)

	node.Routes(e)

	log.Infow("storage node: listening", "addr", cfg.Addr)
	return e.Start(cfg.Addr)
}
