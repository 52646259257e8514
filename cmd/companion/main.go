// Package main provides a command-line surface over the companion core:
// a chat-summary reindex job, a tokenizer smoke-test, and a config/secret
// doctor check — the same pieces a Tauri command handler would otherwise
// wire, exposed here for operators and CI rather than through IPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tauritavern/companion-core/internal/chatstore"
	"github.com/tauritavern/companion-core/internal/config"
	"github.com/tauritavern/companion-core/internal/logging"
	"github.com/tauritavern/companion-core/internal/secretstore"
	"github.com/tauritavern/companion-core/internal/summaryindex"
	"github.com/tauritavern/companion-core/internal/tokenizer"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "doctor":
		err = runDoctor(args)
	case "reindex":
		err = runReindex(args)
	case "count-tokens":
		err = runCountTokens(args)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "companion: "+cmd+": "+err.Error())
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: companion <doctor|reindex|count-tokens> [flags]")
}

func loadConfigAndLogger(fs *flag.FlagSet, args []string) (*config.Config, logging.Logger, error) {
	yamlPath := fs.String("config", "", "path to a YAML config overlay")
	dataRoot := fs.String("data-root", "", "override the configured data root")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	var opts []config.Option
	if *dataRoot != "" {
		opts = append(opts, config.WithDataRoot(*dataRoot))
	}

	cfg, err := config.Load(*yamlPath, opts...)
	if err != nil {
		return nil, nil, err
	}

	logger := logging.New(cfg.Level(), cfg.LogJSON)
	return cfg, logger, nil
}

// runDoctor loads config, opens the secret store, and, for each provider
// that has a <PROVIDER>_API_KEY environment variable, reports whether the
// secret store also holds an active key for it — a quick pre-flight check
// before wiring up the provider router in a real session.
func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	cfg, logger, err := loadConfigAndLogger(fs, args)
	if err != nil {
		return err
	}

	secretsPath := filepath.Join(cfg.DataRoot, "secrets.json")
	store, err := secretstore.Open(secretsPath)
	if err != nil {
		return err
	}

	logger.Info("loaded configuration", "data_root", cfg.DataRoot, "log_level", cfg.LogLevel)
	for provider := range cfg.APIKeys {
		key := "api_key_" + provider
		if _, ok := store.Active(key); ok {
			logger.Info("provider secret already stored", "provider", provider)
			continue
		}
		logger.Info("provider secret available from environment only", "provider", provider)
	}
	return nil
}

// runReindex walks every character and group chat file under the
// configured data root, scanning each into the summary index and flushing
// the result — the maintenance-mode equivalent of the lazy per-lookup scan.
func runReindex(args []string) error {
	fs := flag.NewFlagSet("reindex", flag.ContinueOnError)
	cfg, logger, err := loadConfigAndLogger(fs, args)
	if err != nil {
		return err
	}

	store := chatstore.New(filepath.Join(cfg.DataRoot, "chats"), chatstore.Config{
		CacheCapacity:     cfg.MemoryCacheEntries,
		CacheTTL:          cfg.MemoryCacheTTL,
		BackupInterval:    cfg.BackupThrottle,
		MaxBackupsPerChat: cfg.MaxBackupsPerChat,
		MaxBackupsTotal:   cfg.MaxBackupsTotal,
	})
	if err := store.EnsureDirectories(); err != nil {
		return err
	}

	characterChats, err := store.ListCharacterChats("")
	if err != nil {
		return err
	}
	groupChats, err := store.ListGroupChats()
	if err != nil {
		return err
	}

	indexPath := filepath.Join(cfg.CacheDir, "chat-summary-index.json")
	idx := summaryindex.NewIndex(indexPath)

	scanned := 0
	for _, chat := range append(characterChats, groupChats...) {
		if _, err := idx.Summary(chat.Path, chat.CharacterName, chat.FileName); err != nil {
			logger.Warn("failed to scan chat file", "path", chat.Path, "error", err)
			continue
		}
		scanned++
	}

	if err := idx.Flush(); err != nil {
		return err
	}
	logger.Info("reindex complete", "chats_scanned", scanned, "index_path", indexPath)
	return nil
}

// runCountTokens reads text from stdin and reports the token count the
// tokenizer registry computes for the requested model, downloading or
// caching any remote tokenizer resource as needed.
func runCountTokens(args []string) error {
	fs := flag.NewFlagSet("count-tokens", flag.ContinueOnError)
	model := fs.String("model", tokenizer.DefaultFallbackModel, "requested model name")
	timeout := fs.Duration("timeout", 60*time.Second, "overall timeout for tokenizer resource downloads")
	cfg, logger, err := loadConfigAndLogger(fs, args)
	if err != nil {
		return err
	}

	text, err := io.ReadAll(os.Stdin)
	if err != nil {
		return err
	}

	registry := tokenizer.NewRegistry(filepath.Join(cfg.CacheDir, "tokenizers"))
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	count, err := registry.CountText(ctx, *model, string(text))
	if err != nil {
		return err
	}

	logger.Info("counted tokens", "model", *model, "canonical", tokenizer.Canonical(*model), "tokens", count)
	fmt.Println(count)
	return nil
}
