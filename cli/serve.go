package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"adventure-editor/api"
	"adventure-editor/autosave"
	"adventure-editor/config"
	"adventure-editor/media"
	"adventure-editor/watcher"
)

const shutdownTimeout = 10 * time.Second

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (overrides the config)")
	cmd.Flags().Bool("watch", false, "Watch the file store directory (file driver only)")
	cmd.Flags().Bool("debug", false, "Gin debug mode and request logging")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}
	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		cfg.Watch = true
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	mediaStore, err := media.NewLocalStore(cfg.MediaDir, cfg.MediaBaseURL, cfg.MediaMaxSize)
	if err != nil {
		return fmt.Errorf("open media store: %w", err)
	}

	var fw *watcher.FileWatcher
	if cfg.Watch {
		fw, err = watcher.NewFileWatcher(watcher.WatcherConfig{Paths: []string{cfg.DataDir}, Validate: true})
		if err != nil {
			return err
		}
	}

	server := api.NewServer(api.ServerConfig{
		Addr:        cfg.Addr,
		Store:       st,
		Media:       mediaStore,
		Autosave:    autosave.Config{Debounce: cfg.AutosaveDebounce},
		Watcher:     fw,
		EnableCORS:  cfg.CORS,
		CORSOrigins: cfg.CORSOrigins,
		Debug:       cfg.Debug,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(server.Start)
	if fw != nil {
		g.Go(func() error { return fw.Run(ctx) })
	}
	g.Go(func() error {
		<-ctx.Done()
		log.Println("[api] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Printf("[api] store: %s, media: %s", describeStore(cfg), cfg.MediaDir)
	return g.Wait()
}

func describeStore(cfg config.Config) string {
	if cfg.StoreDriver == config.DriverFile {
		return "file " + cfg.DataDir
	}
	return "sqlite " + cfg.SQLitePath
}
