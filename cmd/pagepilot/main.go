// Package main is the pagepilot terminal runner: it attaches to a running
// browser over its remote-debugging port and drives it from a chat loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"

	"github.com/pagepilot/pagepilot/pkg/agent"
	"github.com/pagepilot/pagepilot/pkg/browser"
	appconfig "github.com/pagepilot/pagepilot/pkg/config"
	"github.com/pagepilot/pagepilot/pkg/executor/cli"
	"github.com/pagepilot/pagepilot/pkg/llm/openai"
	"github.com/pagepilot/pagepilot/pkg/netcategory"
	"github.com/pagepilot/pagepilot/pkg/permission"
	"github.com/pagepilot/pagepilot/pkg/tools/browse"
)

const version = "0.1.0"

// Config holds the resolved runner configuration: settings file values
// overridden by flags and environment.
type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	BrowserURL      string
	SettingsPath    string
	SkipPermissions bool
	ForcePrompt     bool
	ShowVersion     bool
}

func main() {
	config := parseFlags()

	if config.ShowVersion {
		fmt.Printf("pagepilot v%s\n", version)
		return
	}

	if config.APIKey == "" {
		log.Fatal("an API key is required: pass -api-key or set OPENAI_API_KEY")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nShutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, config); err != nil && err != context.Canceled {
		log.Fatalf("pagepilot: %v", err)
	}
}

func parseFlags() *Config {
	config := &Config{}

	flag.StringVar(&config.APIKey, "api-key", os.Getenv("OPENAI_API_KEY"), "API key (or set OPENAI_API_KEY)")
	flag.StringVar(&config.BaseURL, "base-url", os.Getenv("OPENAI_BASE_URL"), "API base URL for OpenAI-compatible providers")
	flag.StringVar(&config.Model, "model", "", "Model name (defaults to the settings file value)")
	flag.StringVar(&config.BrowserURL, "browser-url", "", "Remote-debugging URL of a running browser (e.g. http://127.0.0.1:9222)")
	flag.StringVar(&config.SettingsPath, "config", "", "Path to the settings file (default ~/.pagepilot/config.yaml)")
	flag.BoolVar(&config.SkipPermissions, "skip-permissions", false, "Skip all permission checks (trusted environments only)")
	flag.BoolVar(&config.ForcePrompt, "force-prompt", false, "Prompt on every action regardless of stored grants")
	flag.BoolVar(&config.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "pagepilot - a browser-driving chat agent\n\n")
		fmt.Fprintf(os.Stderr, "Usage: pagepilot [options]\n\n")
		fmt.Fprintf(os.Stderr, "Start your browser with remote debugging enabled, e.g.:\n")
		fmt.Fprintf(os.Stderr, "  chromium --remote-debugging-port=9222\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()
	return config
}

func run(ctx context.Context, config *Config) error {
	settings, err := appconfig.LoadSettings(config.SettingsPath)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	if config.Model == "" {
		config.Model = settings.Model
	}
	if config.BaseURL == "" {
		config.BaseURL = settings.BaseURL
	}
	if config.BrowserURL == "" {
		config.BrowserURL = settings.Browser.DebugURL
	}

	providerOpts := []openai.ProviderOption{openai.WithModel(config.Model)}
	if config.BaseURL != "" {
		providerOpts = append(providerOpts, openai.WithBaseURL(config.BaseURL))
	}
	provider, err := openai.NewProvider(config.APIKey, providerOpts...)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	transport, err := connectBrowser(config.BrowserURL)
	if err != nil {
		return err
	}
	surface := browser.NewSession(transport)

	backend, err := appconfig.NewFileStore("")
	if err != nil {
		return fmt.Errorf("failed to open permission state: %w", err)
	}
	store, err := permission.NewStore(backend)
	if err != nil {
		return fmt.Errorf("failed to load permissions: %w", err)
	}
	gate := permission.NewGate(store,
		permission.WithSkipAll(config.SkipPermissions || settings.Permissions.SkipAll),
		permission.WithForcePrompt(config.ForcePrompt || settings.Permissions.ForcePrompt),
	)

	categories := netcategory.NewClient(settings.Network.CategoryEndpoint,
		netcategory.WithOverrides(settings.Network.Allow, settings.Network.Block))

	env := browse.NewEnv(surface, gate, categories, provider)
	registry := browse.NewRegistry(env)
	session := agent.NewSession(provider, registry, agent.WithSystemPrompt(systemPrompt))

	return cli.NewExecutor(session).Run(ctx)
}

// connectBrowser attaches to a running browser's debugging endpoint and
// targets its first open page.
func connectBrowser(debugURL string) (*browser.RodTransport, error) {
	if debugURL == "" {
		return nil, fmt.Errorf("a browser debug URL is required: pass -browser-url or set browser.debug_url in the settings file")
	}

	wsURL, err := launcher.ResolveURL(debugURL)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve browser debug URL %s: %w", debugURL, err)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser at %s: %w", debugURL, err)
	}

	pages, err := b.Pages()
	if err != nil {
		return nil, fmt.Errorf("failed to list browser pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("the browser has no open pages; open a tab first")
	}

	return browser.NewRodTransport(b, string(pages[0].TargetID)), nil
}
