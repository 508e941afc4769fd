package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-moment-client/app"
	"github.com/jrsteele09/go-moment-client/internal/config"
	moerrors "github.com/jrsteele09/go-moment-client/internal/errors"
	"github.com/jrsteele09/go-moment-client/internal/utils"
	"github.com/jrsteele09/go-moment-client/realtime"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newCLI().Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("moment failed")
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:  "moment",
		Usage: "Moment client",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file"},
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file loaded before the environment is read"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "skip the banner"},
		},
		Commands: []*cli.Command{
			{
				Name:  "send-otp",
				Usage: "send a one-time code to an email or phone",
				Flags: contactFlags(),
				Action: withApp(func(c *cli.Context, a *app.App) error {
					resp, err := a.Auth.SendOTP(c.Context, c.String("email"), c.String("phone"))
					if err != nil {
						return err
					}
					fmt.Printf("%s (expires %s)\n", resp.Detail, resp.ExpiresAt.Local().Format(time.Kitchen))
					return nil
				}),
			},
			{
				Name:  "verify-otp",
				Usage: "exchange a one-time code for credentials",
				Flags: append(contactFlags(), &cli.StringFlag{Name: "otp", Required: true}),
				Action: withApp(func(c *cli.Context, a *app.App) error {
					resp, err := a.Auth.VerifyOTP(c.Context, c.String("email"), c.String("phone"), c.String("otp"))
					if err != nil {
						return err
					}
					fmt.Printf("logged in, session valid until %s\n", resp.Pair().RefreshExpiry().Local().Format(time.RFC1123))
					return nil
				}),
			},
			{
				Name:  "status",
				Usage: "show login and verification status",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					fmt.Printf("device      %s\n", a.Identity)
					if !a.Auth.IsAuthenticated(c.Context) {
						fmt.Println("logged in   no")
						return nil
					}
					fmt.Println("logged in   yes")
					kyc, err := a.KYC.Status(c.Context)
					switch {
					case moerrors.StatusCode(err) == 404:
						fmt.Println("kyc         not submitted")
					case err != nil:
						return err
					default:
						fmt.Printf("kyc         %s\n", kyc.Status)
					}
					return nil
				}),
			},
			{
				Name:  "me",
				Usage: "print the signed-in account",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					user, err := a.Users.Me(c.Context)
					if err != nil {
						return err
					}
					fmt.Printf("#%d %s %s\n", user.ID, user.Email, user.Phone)
					if p := user.Profile; p != nil {
						fmt.Printf("%s %s, %d\n%s\n", utils.Value(p.FirstName), utils.Value(p.LastName), utils.Value(p.Age), utils.Value(p.Bio))
					}
					return nil
				}),
			},
			{
				Name:  "eligibility",
				Usage: "check whether a matching session can start",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					e, err := a.Location.CheckEligibility(c.Context)
					if err != nil {
						return err
					}
					if e.Eligible() {
						fmt.Println("eligible")
						return nil
					}
					fmt.Printf("missing: %v\n", e.Missing)
					return nil
				}),
			},
			{
				Name:  "logout",
				Usage: "revoke and forget the stored credentials",
				Action: withApp(func(c *cli.Context, a *app.App) error {
					return a.Auth.Logout(c.Context)
				}),
			},
			{
				Name:  "match",
				Usage: "open a realtime session and stream a fixed location",
				Flags: []cli.Flag{
					&cli.Float64Flag{Name: "lat", Required: true},
					&cli.Float64Flag{Name: "lon", Required: true},
					&cli.DurationFlag{Name: "interval", Value: 10 * time.Second, Usage: "location update interval"},
				},
				Action: withApp(runMatch),
			},
		},
	}
}

func contactFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "email", Aliases: []string{"e"}},
		&cli.StringFlag{Name: "phone", Aliases: []string{"p"}},
	}
}

// withApp loads configuration and builds the App around action.
func withApp(action func(*cli.Context, *app.App) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		if err := config.LoadDotEnv(c.String("env-file")); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}

		var cfg config.Config = config.New()
		if path := c.String("config"); path != "" {
			var err error
			if cfg, err = config.NewFromFile(path); err != nil {
				return err
			}
		}
		logger := setupLogger(cfg.GetLogLevel())

		if !c.Bool("quiet") {
			displayAppname(cfg.GetAppName())
		}

		a, err := app.New(cfg, app.WithLogger(logger))
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				logger.Err(err).Msg("shutdown")
			}
		}()
		return action(c, a)
	}
}

func runMatch(c *cli.Context, a *app.App) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return streamMatches(ctx, a, c.Float64("lat"), c.Float64("lon"), c.Duration("interval"), os.Stdout)
}

// streamMatches runs one realtime session, sending the location every
// interval and printing events to w until ctx is done or the session ends.
func streamMatches(ctx context.Context, a *app.App, lat, lon float64, interval time.Duration, w io.Writer) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	matches, stopMatches := a.Realtime.SubscribeMatches()
	defer stopMatches()
	ends, stopEnds := a.Realtime.SubscribeSessionEnds()
	defer stopEnds()
	events, stopEvents := a.Realtime.SubscribeConnection()
	defer stopEvents()

	busDone := make(chan error, 1)
	go func() { busDone <- a.RunEventBus(ctx) }()

	if err := a.Realtime.Connect(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.Realtime.Disconnect()
			return waitBus(busDone)
		case <-ticker.C:
			a.Realtime.SendLocationUpdate(lat, lon)
		case m, ok := <-matches:
			if !ok {
				stop()
				return waitBus(busDone)
			}
			printMatch(w, m)
		case e, ok := <-ends:
			if !ok {
				stop()
				return waitBus(busDone)
			}
			printColoured(w, realtime.TypeSessionEnd, "%s", e.Reason)
		case ev, ok := <-events:
			if !ok {
				stop()
				return waitBus(busDone)
			}
			printConnectionEvent(w, ev)
			switch ev.(type) {
			case realtime.Connected:
				a.Realtime.SendLocationUpdate(lat, lon)
			case realtime.Unauthorized:
				stop()
				_ = waitBus(busDone)
				return moerrors.ErrAuthExpired
			case realtime.Disconnected, realtime.Error:
				stop()
				return waitBus(busDone)
			}
		}
	}
}

func waitBus(done <-chan error) error {
	err := <-done
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func setupLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	return log.Logger
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
