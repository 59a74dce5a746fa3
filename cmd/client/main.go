package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	router "github.com/dkeye/Meet/internal/adapters/http"
	"github.com/dkeye/Meet/internal/adapters/rtc"
	signaling "github.com/dkeye/Meet/internal/adapters/signal"
	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/app/media"
	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	policy, err := app.PolicyByName(cfg.GlarePolicy)
	if err != nil {
		return err
	}
	transports, err := rtc.NewFactory(cfg.ICEServers)
	if err != nil {
		return err
	}

	o := orch.New(orch.Deps{
		Dialer:     signaling.NewDialer(cfg.Signal),
		Media:      media.NewFileProvider(cfg.Media),
		Transports: transports,
		Policy:     policy,
	}, orch.Options{
		RoomLinkBase:       cfg.RoomLinkBase,
		NegotiationRetries: cfg.NegotiationRetries,
		SignalMediaState:   cfg.SignalMediaState,
		Chat:               cfg.Chat,
	})
	// Implicit teardown: whatever way we leave, the session ends the same.
	defer o.Close()

	go printEvents(o)

	if cfg.ControlAddr != "" {
		srv := &http.Server{Addr: cfg.ControlAddr, Handler: router.SetupRouter(cfg.Mode, o)}
		go func() {
			log.Info().Str("addr", cfg.ControlAddr).Msg("control API started")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("control API error")
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("control API forced to shutdown")
			}
		}()
	}

	if cfg.Room != "" {
		if err := o.Join(ctx, cfg.Room, cfg.Name); err != nil {
			return err
		}
		fmt.Printf("joined %s as %s\n", cfg.Room, cfg.Name)
	} else if cfg.ControlAddr == "" {
		return errors.New("nothing to do: set --room or --control-addr")
	}

	lines := make(chan string)
	go readLines(os.Stdin, lines)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := command(o, line); quit {
				return nil
			}
		}
	}
}

func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		out <- sc.Text()
	}
}

// command runs one REPL line and reports whether to quit.
func command(o *orch.Orchestrator, line string) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false
	case "/quit":
		if err := o.HangUp(); err != nil {
			fmt.Println("hang up:", err)
		}
		return true
	case "/mute":
		on, err := o.ToggleAudio()
		report("audio", on, err)
	case "/video":
		on, err := o.ToggleVideo()
		report("video", on, err)
	case "/link":
		link, err := o.CopyRoomLink()
		if err != nil {
			fmt.Println("link:", err)
			return false
		}
		fmt.Println(link)
	case "/who":
		for _, p := range o.Participants() {
			fmt.Printf("  %s %-20s %s\n", p.ID, p.DisplayName, p.Phase)
		}
	default:
		if strings.HasPrefix(line, "/") {
			fmt.Println("commands: /mute /video /link /who /quit")
			return false
		}
		if _, err := o.SendChat(line); err != nil {
			fmt.Println("chat:", err)
		}
	}
	return false
}

func report(kind string, on bool, err error) {
	if err != nil {
		fmt.Printf("%s: %v\n", kind, err)
		return
	}
	state := "off"
	if on {
		state = "on"
	}
	fmt.Printf("%s %s\n", kind, state)
}

func printEvents(o *orch.Orchestrator) {
	for ev := range o.Events() {
		switch ev.Kind {
		case orch.EventChatReceived:
			if ev.Message != nil {
				fmt.Printf("[%s] %s: %s\n", ev.Message.Timestamp.Local().Format("15:04"), ev.Message.SenderName, ev.Message.Text)
			}
		case orch.EventConnectionPhase:
			fmt.Printf("* %s %s\n", ev.Participant, ev.Phase)
		case orch.EventNegotiationFailed, orch.EventSignalingLost:
			fmt.Printf("! %s\n", ev.Err)
		case orch.EventCallEnded:
			fmt.Println("* call ended")
		case orch.EventParticipantsChanged:
		}
	}
}
