package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"misterwhisper/action"
	"misterwhisper/audio"
	"misterwhisper/clipboard"
	"misterwhisper/config"
	"misterwhisper/doctor"
	"misterwhisper/hotkey"
	"misterwhisper/log"
	"misterwhisper/notify"
	"misterwhisper/shutdown"
	"misterwhisper/transcriber"
)

var version = "dev"

type options struct {
	configPath string
	logPath    string
	verbose    bool

	remote     string
	model      string
	modelsDir  string
	hotkey     string
	action     string
	silence    bool
	device     string
	language   string
	tui        bool
	noTray     bool
	testWAV    string
	fakeEngine string
}

func newRootCmd() *cobra.Command {
	var o options
	root := &cobra.Command{
		Use:   "misterwhisper [remote-url]",
		Short: "Hotkey dictation with whisper.cpp",
		Long: `misterwhisper records while you hold (or after you tap) a function key,
transcribes the audio with whisper.cpp and pastes or types the text into the
focused window.

Without a remote URL the local whisper.cpp CLI is used with a ggml model from
the models directory.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(&o)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && !cmd.Flags().Changed("remote") {
				o.remote = args[0]
			}
			if o.testWAV != "" {
				return runTestMode(cmd, &o)
			}
			return runDaemon(cmd, &o)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "config file (default: <user config dir>/misterwhisper/config.toml)")
	pf.StringVar(&o.logPath, "logpath", "", "log directory (default: OS-specific location)")
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "mirror diagnostics to stderr")
	pf.StringVar(&o.modelsDir, "models-dir", "", "directory holding ggml model files")
	pf.StringVar(&o.model, "model", "", "model file name inside the models directory")
	pf.StringVar(&o.remote, "remote", "", "whisper.cpp server URL; use the remote engine instead of the local CLI")
	pf.StringVar(&o.language, "language", "", "spoken language code, or auto")
	pf.StringVar(&o.device, "device", "", "preferred input device name")
	pf.StringVar(&o.hotkey, "hotkey", "", "recording hotkey, F1 to F12")

	f := root.Flags()
	f.StringVar(&o.action, "action", "", "what to do with text: paste, type or nothing")
	f.BoolVar(&o.silence, "silence", false, "transcribe at each pause while recording")
	f.BoolVar(&o.tui, "tui", false, "show the terminal status view")
	f.BoolVar(&o.noTray, "no-tray", false, "do not show the tray icon")
	f.StringVar(&o.testWAV, "test", "", "headless stdin-driven mode recording from a WAV file")
	f.StringVar(&o.fakeEngine, "fake-engine", "", "answer every segment with this text (test mode)")
	f.MarkHidden("test")
	f.MarkHidden("fake-engine")

	root.AddCommand(
		newDevicesCmd(&o),
		newModelsCmd(&o),
		newHistoryCmd(),
		newDoctorCmd(&o),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("misterwhisper %s\n", version)
			},
		},
	)
	return root
}

func run() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		log.Errorf("exit: %v", err)
		log.Close()
		os.Exit(1)
	}
	log.Close()
}

func setupLogging(o *options) error {
	dir, err := log.ResolveDir(o.logPath)
	if err != nil {
		return fmt.Errorf("resolving log directory: %w", err)
	}
	log.SetDir(dir)
	log.SetVerbose(o.verbose)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	return nil
}

// openStore loads the config file and applies the command-line overrides,
// which last for this process only.
func openStore(cmd *cobra.Command, o *options) (*config.Store, error) {
	path := o.configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, fmt.Errorf("locating config: %w", err)
		}
	}
	store, err := config.Open(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	err = store.Override(func(c *config.Config) {
		set := func(name string, dst *string, v string) {
			if flags.Changed(name) {
				*dst = v
			}
		}
		set("models-dir", &c.ModelsDir, o.modelsDir)
		set("model", &c.Model, o.model)
		set("language", &c.Language, o.language)
		set("device", &c.Device, o.device)
		set("hotkey", &c.Hotkey, o.hotkey)
		set("action", &c.Action, o.action)
		if o.remote != "" {
			c.RemoteURL = o.remote
		}
		if flags.Lookup("silence") != nil && flags.Changed("silence") {
			c.Silence = o.silence
		}
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// buildEngine picks the remote engine when a URL is configured, otherwise
// the local CLI with a model from the models directory. A missing model is
// replaced by the first one available, and that choice is saved.
func buildEngine(store *config.Store) (transcriber.Transcriber, error) {
	cfg := store.Get()
	if cfg.RemoteURL != "" {
		r, err := transcriber.NewRemote(cfg.RemoteURL, cfg.Language)
		if err != nil {
			return nil, err
		}
		r.OnMetrics = func(m *transcriber.NetworkMetrics) { log.Infof("remote request: %s", m) }
		return r, nil
	}

	model, changed, err := transcriber.ResolveModel(cfg.ModelsDir, cfg.Model)
	if err != nil {
		return nil, err
	}
	if changed {
		log.Warnf("model %q not found, using %q", cfg.Model, model)
		if err := store.Update(func(c *config.Config) { c.Model = model }); err != nil {
			log.Warnf("saving model: %v", err)
		}
	}
	cfg.Model = model
	return transcriber.New(transcriber.Config{
		ModelsDir:     cfg.ModelsDir,
		Model:         cfg.Model,
		WhisperBinary: cfg.WhisperBinary,
		Language:      cfg.Language,
	})
}

// explain turns startup errors into something the user can act on.
func explain(err error, store *config.Store) error {
	var dir string
	if store != nil {
		dir = store.Get().ModelsDir
	}
	switch {
	case errors.Is(err, transcriber.ErrNoModels), errors.Is(err, transcriber.ErrModelNotFound):
		return fmt.Errorf("%w\n\nDownload a ggml model (for example %s) from\n  %s\ninto %s",
			err, transcriber.DefaultModel, transcriber.ModelsURL, dir)
	case errors.Is(err, transcriber.ErrEngineNotFound):
		return fmt.Errorf("%w\n\nInstall whisper.cpp, set whisper_binary in the config, or pass a server URL with --remote", err)
	case errors.Is(err, audio.ErrNoDevice):
		return fmt.Errorf("%w\n\nConnect a microphone and try again", err)
	}
	return err
}

func runDaemon(cmd *cobra.Command, o *options) error {
	store, err := openStore(cmd, o)
	if err != nil {
		return err
	}
	engine, err := buildEngine(store)
	if err != nil {
		return explain(err, store)
	}
	cfg := store.Get()
	log.SessionStart(engine.Name(), engineDetail(engine))
	if r, ok := engine.(*transcriber.Remote); ok {
		r.Warm(context.Background())
	}

	actx, err := audio.NewContext()
	if err != nil {
		return fmt.Errorf("initializing audio: %w", err)
	}
	defer actx.Close()

	if cfg.Mode() != action.None {
		if msg, err := clipboard.Verify(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: keystroke output unavailable: %v\n", err)
			log.Warnf("keystroke init: %v", err)
		} else {
			log.Info(msg)
		}
	}

	a := newApp(appDeps{
		Store:     store,
		Audio:     actx,
		Engine:    engine,
		Clipboard: clipboard.System{},
		Keyboard:  clipboard.System{},
		Report:    notify.New(),
	})

	ctx, cancel := shutdown.Context(context.Background())
	defer cancel()

	if err := a.start(ctx); err != nil {
		return err
	}
	defer a.stop()
	go a.watchDevices(ctx)

	if !o.noTray {
		t := a.newTray(cancel)
		callOnMain(t.Start)
		defer callOnMain(t.Close)
	}

	if o.tui {
		return runTUI(ctx, cancel, a)
	}
	fmt.Printf("misterwhisper %s ready. Press %s to record, Ctrl+C to quit.\n", version, a.currentKey())
	<-ctx.Done()
	return nil
}

func engineDetail(t transcriber.Transcriber) string {
	switch e := t.(type) {
	case *transcriber.Local:
		return e.Model()
	case *transcriber.Remote:
		return e.URL()
	}
	return ""
}

func newDevicesCmd(o *options) *cobra.Command {
	var pick bool
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List audio inputs, or pick one with --select",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd, o)
			if err != nil {
				return err
			}
			actx, err := audio.NewContext()
			if err != nil {
				return fmt.Errorf("initializing audio: %w", err)
			}
			defer actx.Close()
			devices, err := actx.Devices()
			if err != nil {
				return fmt.Errorf("listing audio inputs: %w", err)
			}
			cfg := store.Get()

			if !pick {
				if len(devices) == 0 {
					return explain(audio.ErrNoDevice, store)
				}
				fmt.Print(formatDevices(devices, cfg.Device, cfg.PreviousDevice))
				return nil
			}

			dev, err := audio.SelectDevice(devices, cfg.Device)
			if errors.Is(err, audio.ErrSelectionCancelled) {
				return nil
			}
			if err != nil {
				return explain(err, store)
			}
			if err := store.SelectDevice(dev.Name); err != nil {
				return err
			}
			fmt.Printf("Using %s\n", dev.Name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&pick, "select", false, "choose the preferred input interactively")
	return cmd
}

func formatDevices(devices []audio.DeviceInfo, preferred, previous string) string {
	var b strings.Builder
	for _, d := range devices {
		var tags []string
		switch d.Name {
		case preferred:
			tags = append(tags, "preferred")
		case previous:
			tags = append(tags, "previous")
		}
		if audio.IsBluetooth(d.Name) {
			tags = append(tags, "bluetooth, lower quality")
		}
		mark := " "
		if d.Name == preferred {
			mark = "*"
		}
		fmt.Fprintf(&b, "%s %s", mark, d.Name)
		if len(tags) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(tags, "; "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func newModelsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List ggml models in the models directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd, o)
			if err != nil {
				return err
			}
			cfg := store.Get()
			models, err := transcriber.ListModels(cfg.ModelsDir)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if len(models) == 0 {
				return explain(fmt.Errorf("%w in %s", transcriber.ErrNoModels, cfg.ModelsDir), store)
			}
			for _, m := range models {
				mark := " "
				if m == cfg.Model {
					mark = "*"
				}
				fmt.Printf("%s %-12s %s\n", mark, transcriber.ModelLabel(m), m)
			}
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print past transcriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := log.ReadTranscriptions()
			if errors.Is(err, os.ErrNotExist) {
				fmt.Println("No transcriptions yet.")
				return nil
			}
			if err != nil {
				return err
			}
			if last > 0 && len(entries) > last {
				entries = entries[len(entries)-last:]
			}
			for _, e := range entries {
				fmt.Printf("%s  %s\n", e.Time.Format("2006-01-02 15:04:05"), e.Text)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&last, "last", "n", 0, "only the most recent n entries")
	return cmd
}

func newDoctorCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check hotkey, microphone, engine and clipboard interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd, o)
			if err != nil {
				return err
			}
			cfg := store.Get()
			engine, err := buildEngine(store)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", explain(err, store))
			}
			actx, err := audio.NewContext()
			if err != nil {
				return fmt.Errorf("initializing audio: %w", err)
			}
			defer actx.Close()
			code := doctor.Run(doctor.Options{
				Key:            cfg.Key(),
				NewHotkey:      hotkey.New,
				DiagnoseHotkey: hotkey.Diagnose,
				Audio:          actx,
				Device:         cfg.Device,
				PreviousDevice: cfg.PreviousDevice,
				Engine:         engine,
				Clipboard:      clipboard.System{},
				VerifyKeyboard: clipboard.Verify,
			})
			if code != 0 {
				return errors.New("diagnostics failed")
			}
			return nil
		},
	}
}
