// Command keypadctl configures a six-button serial macro keypad and can keep
// it in sync with the running programs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"

	keypad "libdb.so/go-keypad"
	"libdb.so/go-keypad/internal/wsnotify"
)

var (
	portName     = flag.String("port", "", "serial port of the keypad (auto-detected when empty)")
	profilesPath = flag.String("profiles", "", "profiles file (defaults to the user config dir)")
	readTimeout  = flag.Duration("timeout", keypad.DefaultReadTimeout, "serial read timeout")
	pollInterval = flag.Duration("interval", keypad.DefaultPollInterval, "process poll interval for watch")
	notifyURL    = flag.String("notify", "", "websocket URL receiving watch notifications")
	verbose      = flag.Bool("v", false, "enable debug logging")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: %s [flags] <command> [args]

Commands:
  detect           find the keypad and print its port
  read             print the combos stored on the keypad
  write <profile>  load the named profile onto the keypad
  flash <buttons>  blink buttons, e.g. "0,2,4"
  profiles         list stored profiles
  init             create the profile store with a default profile
  keys             list key names
  watch            switch profiles as programs start and stop

Flags:
`, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, logger, flag.Args()); err != nil {
		logger.Error(
			"keypadctl failed",
			"err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, args []string) error {
	if len(args) == 0 {
		flag.Usage()
		return errors.New("no command given")
	}

	device := newDevice(logger)
	defer device.Close()

	switch cmd, args := args[0], args[1:]; cmd {
	case "detect":
		if err := device.Connect(ctx); err != nil {
			return err
		}
		fmt.Println(device.Port())
		return nil

	case "read":
		combos, err := device.GetCombos(ctx)
		if err != nil {
			return err
		}
		printCombos(combos)
		return nil

	case "write":
		if len(args) != 1 {
			return errors.New("usage: write <profile>")
		}
		return writeProfile(ctx, device, args[0])

	case "flash":
		if len(args) != 1 {
			return errors.New("usage: flash <buttons>")
		}
		buttons, err := parseButtons(args[0])
		if err != nil {
			return err
		}
		return device.FlashKeys(ctx, buttons)

	case "profiles":
		profiles, err := loadProfiles()
		if err != nil {
			return err
		}
		for i, p := range profiles {
			fmt.Printf("%d\t%s\n", i, p)
		}
		return nil

	case "init":
		return initProfiles(logger)

	case "keys":
		for _, k := range keypad.AllKeys() {
			fmt.Println(k)
		}
		return nil

	case "watch":
		return watch(ctx, logger, device)

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newDevice(logger *slog.Logger) *keypad.Device {
	opts := []keypad.Option{
		keypad.WithLogger(logger),
		keypad.WithReadTimeout(*readTimeout),
	}
	if *portName != "" {
		return keypad.NewDeviceOnPort(*portName, opts...)
	}
	return keypad.NewDevice(opts...)
}

func profilesFile() (string, error) {
	if *profilesPath != "" {
		return *profilesPath, nil
	}
	return keypad.DefaultProfilesPath()
}

func loadProfiles() ([]keypad.Profile, error) {
	path, err := profilesFile()
	if err != nil {
		return nil, err
	}
	return keypad.LoadProfiles(path)
}

func initProfiles(logger *slog.Logger) error {
	path, err := profilesFile()
	if err != nil {
		return err
	}

	profiles, err := keypad.LoadProfiles(path)
	if err != nil {
		return err
	}
	if len(profiles) > 0 {
		logger.Info(
			"profile store already initialised",
			"path", path,
			"profiles", len(profiles))
		return nil
	}

	if err := keypad.SaveProfiles(path, []keypad.Profile{keypad.NewProfile("Default")}); err != nil {
		return err
	}

	logger.Info("created profile store", "path", path)
	return nil
}

func writeProfile(ctx context.Context, device *keypad.Device, name string) error {
	profiles, err := loadProfiles()
	if err != nil {
		return err
	}

	profile, ok := keypad.FindProfile(profiles, name)
	if !ok {
		return fmt.Errorf("no profile named %q", name)
	}

	stored, err := device.SendCombos(ctx, profile.Combos)
	if err != nil {
		return err
	}
	printCombos(stored)

	if !stored.Equal(profile.Combos) {
		return fmt.Errorf("keypad did not store profile %q", name)
	}
	return nil
}

func watch(ctx context.Context, logger *slog.Logger, device *keypad.Device) error {
	profiles, err := loadProfiles()
	if err != nil {
		return err
	}

	opts := []keypad.MonitorOption{
		keypad.WithPollInterval(*pollInterval),
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if *notifyURL != "" {
		sender := wsnotify.New(*notifyURL, logger)
		opts = append(opts, keypad.WithNotify(sender.Notify))

		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sender.Run(ctx)
		}()
	} else {
		opts = append(opts, keypad.WithNotify(func(n keypad.Notification) {
			if n.Err == nil {
				logger.Info(
					"keypad profile changed",
					"profile", n.Profile.Name,
					"confirmed", n.Confirmed)
			}
		}))
	}

	monitor, err := keypad.NewMonitor(profiles, device, opts...)
	if err != nil {
		return err
	}

	logger.Info(
		"watching processes",
		"profiles", len(profiles),
		"interval", pollInterval.String())

	err = monitor.Run(ctx, logger)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func parseButtons(s string) ([keypad.ButtonCount]bool, error) {
	var buttons [keypad.ButtonCount]bool
	for _, field := range strings.Split(s, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return buttons, fmt.Errorf("invalid button %q: %w", field, err)
		}
		if i < 0 || i >= keypad.ButtonCount {
			return buttons, fmt.Errorf("button %d out of range 0-%d", i, keypad.ButtonCount-1)
		}
		buttons[i] = true
	}
	return buttons, nil
}

func printCombos(combos keypad.Combos) {
	for i, c := range combos {
		fmt.Printf("%d\t%s\n", i, c)
	}
}
