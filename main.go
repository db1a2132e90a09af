package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/odvcencio/myedit/backbuffer"
	"github.com/odvcencio/myedit/client"
	"github.com/odvcencio/myedit/config"
	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/ext"
	"github.com/odvcencio/myedit/ext/pluginbuild"
	"github.com/odvcencio/myedit/host"
	"github.com/odvcencio/myedit/modules/builtin"
	"github.com/odvcencio/myedit/modules/highlight"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "myedit: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var cfgPath string

	root := &cobra.Command{
		Use:           "myedit [file]",
		Short:         "Modal terminal editor built from hot-reloadable modules",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, cfgPath)
			if err != nil {
				return err
			}
			return runAttach(cmd.Context(), cfg, cfgPath, args)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgPath, "config", "", "config file (default ~/.config/myedit/config.toml)")
	flags.String("log-level", "info", "log level")
	flags.String("web", "", "serve browser sessions on this address (e.g. :8080)")
	flags.String("session-socket", "", "session socket path")
	flags.String("command-socket", "", "command socket path")
	bindFlag(v, "log.level", flags.Lookup("log-level"))
	bindFlag(v, "web.addr", flags.Lookup("web"))
	bindFlag(v, "socket.session", flags.Lookup("session-socket"))
	bindFlag(v, "socket.command", flags.Lookup("command-socket"))

	root.AddCommand(newHostCmd(v, &cfgPath), newSendCmd(v, &cfgPath), newBuildCmd(v, &cfgPath))
	return root
}

func newHostCmd(v *viper.Viper, cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host [file]",
		Short: "Run the editor host in the foreground",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, *cfgPath)
			if err != nil {
				return err
			}
			var file string
			if len(args) == 1 {
				if file, err = filepath.Abs(args[0]); err != nil {
					return err
				}
			}
			return runHost(cmd.Context(), cfg, file)
		},
	}
	cmd.Flags().Bool("builtin", false, "link the bundled modules instead of loading artifacts")
	cmd.Flags().String("extensions", "", "module artifact directory")
	bindFlag(v, "extensions.builtin", cmd.Flags().Lookup("builtin"))
	bindFlag(v, "extensions.dir", cmd.Flags().Lookup("extensions"))
	return cmd
}

func newBuildCmd(v *viper.Viper, cfgPath *string) *cobra.Command {
	var root, out string
	cmd := &cobra.Command{
		Use:   "build [module...]",
		Short: "Compile modules into artifacts a running host picks up",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, *cfgPath)
			if err != nil {
				return err
			}
			log, err := cfg.Log.Logger()
			if err != nil {
				return err
			}
			log.SetOutput(os.Stderr)
			if out == "" {
				out = cfg.Extensions.Dir
			}

			mods, err := pluginbuild.Modules(filepath.Join(root, "modules"))
			if err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				for name := range mods {
					names = append(names, name)
				}
				sort.Strings(names)
			}
			opts := pluginbuild.Options{Root: root, Out: out, Log: log}
			for _, name := range names {
				src, ok := mods[name]
				if !ok {
					return fmt.Errorf("unknown module %q", name)
				}
				if _, err := pluginbuild.Build(cmd.Context(), opts, name, src); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "source tree holding go.mod and modules/")
	cmd.Flags().StringVar(&out, "out", "", "artifact directory (default extensions.dir)")
	return cmd
}

func newSendCmd(v *viper.Viper, cfgPath *string) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "send --target N <command>",
		Short: `Send a command such as "edit main.go" to a client`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, *cfgPath)
			if err != nil {
				return err
			}
			id, err := strconv.ParseUint(target, 10, 64)
			if err != nil {
				return fmt.Errorf("target %q: %w", target, err)
			}
			return client.SendCommand(cfg.Socket.Command, id, args[0])
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "client identifier shown in the status line")
	cmd.MarkFlagRequired("target")
	return cmd
}

func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func runAttach(ctx context.Context, cfg config.Config, cfgPath string, args []string) error {
	log, err := cfg.Log.Logger()
	if err != nil {
		return err
	}
	opts := client.Options{
		SessionSocket: cfg.Socket.Session,
		CommandSocket: cfg.Socket.Command,
		Log:           log,
		Launch: func() error {
			return launchHost(cfgPath, args)
		},
	}
	if err := client.Attach(ctx, opts, os.Stdin, os.Stdout); err != nil {
		return err
	}
	return nil
}

// launchHost starts "myedit host" detached from this terminal.
func launchHost(cfgPath string, args []string) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	hostArgs := []string{"host"}
	if cfgPath != "" {
		hostArgs = append(hostArgs, "--config", cfgPath)
	}
	for _, a := range args {
		abs, err := filepath.Abs(a)
		if err != nil {
			return err
		}
		hostArgs = append(hostArgs, abs)
	}
	cmd := exec.Command(exe, hostArgs...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

func runHost(ctx context.Context, cfg config.Config, file string) error {
	log, err := cfg.Log.Logger()
	if err != nil {
		return err
	}
	backbuffer.SetLogger(log)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	gd := editor.NewGlobalData()
	table := ext.NewTable(ext.NewLoader(cfg.Extensions.CopyDir, log), log)
	h := host.New(host.Config{
		SessionSocket: cfg.Socket.Session,
		CommandSocket: cfg.Socket.Command,
		StartFile:     file,
	}, gd, table, log)

	if cfg.Extensions.Builtin {
		for _, m := range builtin.Modules(builtin.Options{
			HighlightStyle: cfg.Highlight.Style,
			LSP:            cfg.LSP.Enabled,
		}) {
			if err := table.AddStatic(gd, m); err != nil {
				return err
			}
		}
	} else {
		// Artifacts cannot take options; they read the environment.
		if cfg.Highlight.Style != "" {
			os.Setenv(highlight.EnvStyle, cfg.Highlight.Style)
		}
		if err := h.LoadDir(cfg.Extensions.Dir); err != nil {
			return err
		}
		if err := h.WatchLibraries(ctx, cfg.Extensions.Dir, cfg.Extensions.Debounce); err != nil {
			log.WithError(err).Warn("hot reload disabled")
		}
	}

	if err := h.ListenSessions(ctx, cfg.Socket.Session); err != nil {
		return err
	}
	if err := h.ListenCommands(ctx, cfg.Socket.Command); err != nil {
		return err
	}
	if cfg.Web.Addr != "" {
		serveWeb(ctx, cfg.Web.Addr, h, log)
	}

	err = h.Run(ctx)
	if errors.Is(err, host.ErrKilled) || errors.Is(err, context.Canceled) {
		log.Info("host stopped")
		return nil
	}
	return err
}

func serveWeb(ctx context.Context, addr string, h *host.Host, log logrus.FieldLogger) {
	srv := &http.Server{Addr: addr, Handler: host.NewWebBridge(h.Queue(), log)}
	go func() {
		log.WithField("addr", addr).Info("serving browser sessions")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("web bridge")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}
