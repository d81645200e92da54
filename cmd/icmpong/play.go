package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"icmpong/internal/ansii"
	"icmpong/internal/client"
	"icmpong/internal/config"
	"icmpong/internal/journal"
	"icmpong/internal/logging"
	"icmpong/internal/metrics"
	"icmpong/internal/netwrk"
	"icmpong/internal/renderer"
	"icmpong/internal/session"
)

type playFlags struct {
	configPath       string
	peer             string
	name             string
	ballVelocity     float32
	logLevel         string
	journalPath      string
	metricsAddr      string
	handshakeTimeout time.Duration
}

func playCmd() *cobra.Command {
	var f playFlags

	cmd := &cobra.Command{
		Use:   "icmpong --peer <ipv6-address>",
		Short: "ICMPong - pong over ICMPv6 echo requests",
		Long: `ICMPong is a two-player pong game. Both players run icmpong with
the other's IPv6 address; the game traffic travels inside ICMPv6
echo requests, so no port needs to be open.

Opening a raw ICMPv6 socket needs root or CAP_NET_RAW.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return play(cfg)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVarP(&f.peer, "peer", "p", "", "IPv6 address of the other player")
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "Display name shown to the other player")
	cmd.Flags().Float32VarP(&f.ballVelocity, "ball-velocity", "b", 0.6, "Serve speed in cells per tick")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&f.journalPath, "journal", "", "Record every frame to this file")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().DurationVar(&f.handshakeTimeout, "handshake-timeout", 60*time.Second, "Give up if the peer does not answer in time (0 waits forever)")

	return cmd
}

// loadConfig reads the optional file and applies the flags the user set.
func loadConfig(cmd *cobra.Command, f playFlags) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("peer") {
		cfg.Network.Peer = f.peer
	}
	if flags.Changed("name") {
		cfg.Game.Name = f.name
	}
	if flags.Changed("ball-velocity") {
		cfg.Game.BallVelocity = f.ballVelocity
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if flags.Changed("journal") {
		cfg.Journal.Path = f.journalPath
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = f.metricsAddr
	}
	if flags.Changed("handshake-timeout") {
		cfg.Network.HandshakeTimeout = f.handshakeTimeout
	}

	if cfg.Network.Peer == "" {
		return nil, errors.New("a peer address is required (--peer)")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func play(cfg *config.Config) error {
	peer, err := netwrk.ParsePeer(cfg.Network.Peer)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger, closeLog, err := openLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog.Close()
	logger = logger.With(slog.String(logging.KeyRunID, runID))
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	m := metrics.NewMetricsWithRegistry(reg)
	if cfg.Metrics.Enabled {
		srvCfg := metrics.DefaultServerConfig()
		srvCfg.Address = cfg.Metrics.Address
		srv := metrics.NewServer(srvCfg, reg)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start metrics listener: %w", err)
		}
		defer srv.Stop()
		logger.Info("metrics listening", slog.String("address", srv.Address().String()))
	}

	transport, err := netwrk.Listen(cfg.Network.Bind, logger)
	if err != nil {
		return err
	}

	local, err := netwrk.LocalAddrFor(peer)
	if err != nil {
		logger.Debug("no local address for tie-break", slog.Any(logging.KeyError, err))
	}

	id := session.NewRand().Uint32()
	for id == 0 {
		id = session.NewRand().Uint32()
	}

	var jw *journal.Writer
	if cfg.Journal.Path != "" {
		jw, err = journal.Create(cfg.Journal.Path, journal.Header{RunID: runID, SessionID: id, Time: time.Now()})
		if err != nil {
			transport.Close()
			return err
		}
		defer jw.Close()
	}

	sess := session.New(transport, session.Config{
		Peer:      peer,
		LocalAddr: local,
		Name:      cfg.Game.Name,
		SessionID: id,
		Logger:    logger,
		Metrics:   m,
		Journal:   jw,
	})
	abort := func(err error) error {
		sess.Close()
		<-sess.Done()
		return err
	}

	fmt.Printf("establishing connection with %s...\n", peer)
	go sess.Run()

	fmt.Println("sending Ping packet...")
	if err := sess.Ping(); err != nil {
		return abort(fmt.Errorf("unable to send Ping packet: %w", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := sess.WaitEstablished(ctx, cfg.Network.HandshakeTimeout)
	if err != nil {
		return abort(err)
	}
	fmt.Printf("connected to %s (%s), you are the %s\n", peerLabel(st), peer, st.Role)

	// raw mode swallows ^C, so a signal only arrives from outside
	go func() {
		<-ctx.Done()
		sess.Stop()
	}()

	if w, h, err := ansii.GetTermSize(); err == nil && (w < renderer.Width || h < renderer.Height) {
		logger.Warn("terminal smaller than the field",
			slog.Int("width", w), slog.Int("height", h))
	}

	if !ansii.IsTerminal() {
		return abort(errors.New("stdin is not a terminal"))
	}
	term, err := client.OpenTerminal(os.Stdout)
	if err != nil {
		return abort(fmt.Errorf("unable to enter raw mode: %w", err))
	}

	err = client.Play(sess, client.NewKeyReader(os.Stdin), os.Stdout, client.Config{
		Tick:            cfg.Game.Tick,
		RedrawEvery:     cfg.Game.RedrawEvery,
		BallVelocity:    cfg.Game.BallVelocity,
		DisconnectGrace: cfg.Network.DisconnectGrace,
	})
	term.Close()

	fmt.Println("quitting!")
	return err
}

func openLogger(cfg config.LogConfig) (*slog.Logger, io.Closer, error) {
	if cfg.File == "" {
		return logging.NewLogger(cfg.Level, cfg.Format), io.NopCloser(nil), nil
	}
	return logging.OpenFile(cfg.File, cfg.Level, cfg.Format)
}

func peerLabel(st session.State) string {
	if st.PeerName != "" {
		return st.PeerName
	}
	return fmt.Sprintf("session %d", st.PeerSessionID)
}
