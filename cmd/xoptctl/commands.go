package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xoption/pkg/storage/xstore"
)

// usageError 参数错误，退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// cliUsageMessages urfave/cli 参数错误的消息片段。
var cliUsageMessages = []string{
	"flag provided but not defined",
	"flag needs an argument",
	"invalid value",
	"No help topic for",
	"Required flag",
}

func isCLIUsageError(err error) bool {
	msg := err.Error()
	for _, m := range cliUsageMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// signalContext 第一次 SIGINT / SIGTERM 取消 ctx，第二次强制退出。
func signalContext(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-done:
			return
		}
		select {
		case <-sigCh:
			os.Exit(130)
		case <-done:
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		close(done)
		cancel()
	}
}

func createCommands() []*cli.Command {
	return []*cli.Command{
		createSessionsCommand(),
		createExportCommand(),
		createImportCommand(),
	}
}

func createSessionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sessions",
		Usage: "会话管理",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "列出后端中的会话",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Present() {
						return usageErrorf("sessions list takes no arguments")
					}
					return withRegistry(ctx, cmd, func(r *xstore.Registry) error {
						return cmdList(ctx, r, cmd.Root().Writer)
					})
				},
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "删除会话",
				ArgsUsage: "<id>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					id, err := sessionArg(cmd)
					if err != nil {
						return err
					}
					return withRegistry(ctx, cmd, func(r *xstore.Registry) error {
						return r.Delete(ctx, id)
					})
				},
			},
		},
	}
}

func createExportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "以 JSON 快照输出会话内容",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := sessionArg(cmd)
			if err != nil {
				return err
			}
			return withRegistry(ctx, cmd, func(r *xstore.Registry) error {
				return cmdExport(ctx, r, id, cmd.Root().Writer)
			})
		},
	}
}

func createImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "用快照文件替换会话内容",
		ArgsUsage: "<id> <file|->",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return usageErrorf("import requires <id> and <file>")
			}
			id, file := cmd.Args().Get(0), cmd.Args().Get(1)
			if err := xstore.ValidSessionID(id); err != nil {
				return &usageError{msg: err.Error()}
			}
			snap, err := readSnapshot(file, cmd.Root().Reader)
			if err != nil {
				return err
			}
			return withRegistry(ctx, cmd, func(r *xstore.Registry) error {
				return cmdImport(ctx, r, id, snap)
			})
		},
	}
}

// sessionArg 读取唯一的会话 ID 参数。
func sessionArg(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", usageErrorf("%s requires exactly one session id", cmd.Name)
	}
	id := cmd.Args().First()
	if err := xstore.ValidSessionID(id); err != nil {
		return "", &usageError{msg: err.Error()}
	}
	return id, nil
}

// withRegistry 按设置打开后端，执行 fn 后关闭。
func withRegistry(ctx context.Context, cmd *cli.Command, fn func(*xstore.Registry) error) error {
	s, err := loadSettings(cmd.Root().String("config"), cmd.Root().String("backend"), cmd.Root().String("log-level"))
	if err != nil {
		return err
	}
	logger, closeLog, err := s.logger(cmd.Root().ErrWriter)
	if err != nil {
		return &usageError{msg: err.Error()}
	}
	driver, err := xstore.OpenDriver(ctx, s.Storage)
	if err != nil {
		if errors.Is(err, xstore.ErrUnknownBackend) || errors.Is(err, xstore.ErrInvalidConfig) {
			return errors.Join(&usageError{msg: err.Error()}, closeLog())
		}
		return errors.Join(err, closeLog())
	}
	r := xstore.NewRegistry(driver, xstore.WithLogger(logger))
	err = fn(r)
	return errors.Join(err, r.Close(ctx), closeLog())
}

func cmdList(ctx context.Context, r *xstore.Registry, w io.Writer) error {
	ids, err := r.List(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := fmt.Fprintln(w, id); err != nil {
			return err
		}
	}
	return nil
}

func cmdExport(ctx context.Context, r *xstore.Registry, id string, w io.Writer) error {
	if err := requireSession(ctx, r, id); err != nil {
		return err
	}
	st, err := r.Open(ctx, id, true)
	if err != nil {
		return err
	}
	snap, err := st.Exportation(ctx)
	if err != nil {
		return errors.Join(err, st.Close(ctx))
	}
	if err := st.Close(ctx); err != nil {
		return err
	}
	return xstore.EncodeSnapshot(w, snap)
}

func cmdImport(ctx context.Context, r *xstore.Registry, id string, snap *xstore.Snapshot) error {
	st, err := r.Open(ctx, id, true)
	if err != nil {
		return err
	}
	return errors.Join(st.Importation(ctx, snap), st.Close(ctx))
}

func requireSession(ctx context.Context, r *xstore.Registry, id string) error {
	ids, err := r.List(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(ids, id) {
		return nil
	}
	return fmt.Errorf("%w: %q", xstore.ErrSessionNotFound, id)
}

func readSnapshot(file string, stdin io.Reader) (*xstore.Snapshot, error) {
	if file == "-" {
		return xstore.DecodeSnapshot(stdin)
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	snap, err := xstore.DecodeSnapshot(f)
	return snap, errors.Join(err, f.Close())
}
