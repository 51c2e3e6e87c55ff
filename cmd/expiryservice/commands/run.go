package commands

import (
	"fmt"
	"net"
	"os"

	"github.com/ardanlabs/conf/v2"
	"github.com/artemp/render-stack/internal/expiry"
	"go.uber.org/zap"
)

type Config struct {
	conf.Version
	Root string `conf:"default:./data/expiry,env:EXPIRY_ROOT"`
	Addr string `conf:"default:0.0.0.0:9001,env:EXPIRY_ADDR"`
}

func Run(log *zap.SugaredLogger) error {
	var cfg Config
	cfg.Version = conf.Version{SVN: "render-stack-expiryservice", Desc: "tile expiry service"}
	if err := conf.Parse(os.Args[1:], "EXPIRY", &cfg); err != nil {
		if err == conf.ErrHelpWanted {
			usage, uerr := conf.Usage("EXPIRY", &cfg)
			if uerr != nil {
				return uerr
			}
			fmt.Println(usage)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	udpAddr, err := net.ResolveUDPAddr("udp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("resolving address: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listening: %w", err)
	}
	defer conn.Close()

	svc := expiry.NewService(cfg.Root, log)
	log.Infow("expiry service: listening", "addr", cfg.Addr)
	return svc.Serve(conn)
}
