package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/term"

	"github.com/alexkh/inforno/internal/appinfo"
	"github.com/alexkh/inforno/internal/chat"
	"github.com/alexkh/inforno/internal/config"
	"github.com/alexkh/inforno/internal/llm"
	"github.com/alexkh/inforno/internal/observability"
	"github.com/alexkh/inforno/internal/orchestrator"
	"github.com/alexkh/inforno/internal/secrets"
	"github.com/alexkh/inforno/internal/store"
	"github.com/alexkh/inforno/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "inforno:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		sandboxFlag   = flag.String("sandbox", "", "path to the sandbox file (default: user config dir)")
		configFlag    = flag.String("config", "", "path to the config file")
		versionFlag   = flag.Bool("version", false, "print version and exit")
		setKeyFlag    = flag.String("set-key", "", "store an API key for a backend (openrouter or anthropic) and exit")
		deleteKeyFlag = flag.String("delete-key", "", "remove the stored API key for a backend and exit")
		resetFlag     = flag.Bool("reset", false, "wipe the sandbox back to its factory state and exit")
	)
	flag.Parse()

	if *versionFlag {
		fmt.Println(appinfo.Display())
		return nil
	}
	if *setKeyFlag != "" {
		return setKey(*setKeyFlag)
	}
	if *deleteKeyFlag != "" {
		b, err := secrets.KeyedBackend(*deleteKeyFlag)
		if err != nil {
			return err
		}
		if err := secrets.DeleteAPIKey(b); err != nil {
			return err
		}
		fmt.Printf("key for %s removed\n", b)
		return nil
	}

	configPath := *configFlag
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	sandboxPath := *sandboxFlag
	if sandboxPath == "" {
		sandboxPath = cfg.SandboxPath
	}
	if sandboxPath == "" {
		sandboxPath, err = config.DefaultSandboxPath()
		if err != nil {
			return err
		}
	}

	logPath := cfg.LogPath
	if logPath == "" {
		logPath = filepath.Join(filepath.Dir(sandboxPath), "inforno.log")
	}
	log, closeLog, err := observability.NewFileLogger(logPath)
	if err != nil {
		return err
	}
	defer closeLog()

	st, err := store.Open(sandboxPath)
	if err != nil {
		return err
	}
	defer st.Close()
	log.Info("sandbox open", "path", sandboxPath)

	if *resetFlag {
		if err := st.ResetAllData(); err != nil {
			return err
		}
		log.Warn("sandbox reset", "path", sandboxPath)
		fmt.Println("sandbox reset:", sandboxPath)
		return nil
	}

	loaded, err := st.LoadPresets()
	if err != nil {
		return err
	}
	presets := chat.NewPresets()
	presets.ReplaceAll(loaded)

	orch := orchestrator.New(st, presets, llm.Endpoints{
		Ollama:     cfg.Endpoints.Ollama,
		OpenRouter: cfg.Endpoints.OpenRouter,
		Anthropic:  cfg.Endpoints.Anthropic,
	}, secrets.APIKey, log)

	return tui.Run(context.Background(), os.Stdin, os.Stdout, tui.Options{
		Store:   st,
		Orch:    orch,
		Presets: presets,
		Theme:   cfg.Theme,
		Log:     log,
	})
}

// setKey prompts for the key on the terminal so it never lands in shell
// history or process listings.
func setKey(name string) error {
	b, err := secrets.KeyedBackend(name)
	if err != nil {
		return err
	}
	fmt.Printf("API key for %s: ", b)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("empty key, nothing stored")
	}
	if err := secrets.SetAPIKey(b, string(raw)); err != nil {
		return err
	}
	fmt.Printf("key for %s stored\n", b)
	return nil
}
