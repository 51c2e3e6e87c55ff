package commands

import (
	"fmt"
	"net"
	"os"

	"github.com/ardanlabs/conf/v2"
	"github.com/artemp/render-stack/internal/stats"
	"go.uber.org/zap"
)

type Config struct {
	conf.Version
	UDPAddr string `conf:"default:0.0.0.0:9002,env:STATS_UDP_ADDR"`
	TCPAddr string `conf:"default:0.0.0.0:9003,env:STATS_TCP_ADDR"`
}

func Run(log *zap.SugaredLogger) error {
	var cfg Config
	cfg.Version = conf.Version{SVN: "render-stack-statscollector", Desc: "tile stats collector"}
	if err := conf.Parse(os.Args[1:], "STATS", &cfg); err != nil {
		if err == conf.ErrHelpWanted {
			usage, uerr := conf.Usage("STATS", &cfg)
			if uerr != nil {
				return uerr
			}
			fmt.Println(usage)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	collector := stats.NewCollector()
	server := stats.NewServer(collector, log)

	stop := make(chan struct{})
	go collector.RunHousekeeping(stop)
	defer close(stop)

	udpAddr, err := net.ResolveUDPAddr("udp", cfg.UDPAddr)
	if err != nil {
		return fmt.Errorf("resolving udp address: %w", err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listening udp: %w", err)
	}
	defer udpConn.Close()

	tcpLn, err := net.Listen("tcp", cfg.TCPAddr)
	if err != nil {
		return fmt.Errorf("listening tcp: %w", err)
	}
	defer tcpLn.Close()

	errCh := make(chan error, 2)
	go func() { errCh <- server.ServeUDP(udpConn) }()
	go func() { errCh <- server.ServeTCP(tcpLn) }()

	log.Infow("stats collector: listening", "udp", cfg.UDPAddr, "tcp", cfg.TCPAddr)
	return <-errCh
}
