// xoptctl 管理 xoption 的存储会话。
//
// 用法:
//
//	xoptctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-b, --backend    存储后端 memory|redis|badger|etcd（覆盖配置文件与环境变量）
//	-c, --config     设置文件（YAML / JSON）
//	    --log-level  日志级别 (默认: warn)
//
// 命令:
//
//	sessions list          列出后端中的会话
//	sessions delete <id>   删除会话
//	export <id>            以 JSON 快照输出会话内容
//	import <id> <file>     用快照文件替换会话内容（- 表示标准输入）
//
// 设置来源优先级：命令行 > 环境变量（XOPTION_STORAGE 等）> 设置文件 > 默认值。
//
// 设置文件示例:
//
//	storage:
//	  backend: redis
//	  key_prefix: xoption
//	  redis:
//	    addr: localhost:6379
//	log:
//	  level: info
//	  format: json
//
// 退出码:
//
//	0: 成功
//	1: 执行失败
//	2: 参数错误
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

// 版本信息，可通过 -ldflags "-X main.Version=..." 注入。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

// 退出码。
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signalContext(context.Background())
	code := run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func createApp(stdin io.Reader, stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "xoptctl",
		Usage:     "xoption 存储会话管理工具",
		Version:   fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "backend",
				Aliases: []string{"b"},
				Usage:   "存储后端 memory|redis|badger|etcd",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "设置文件（YAML / JSON）",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "日志级别",
			},
		},
		Commands: createCommands(),
		// 退出码由 run 统一映射，不让 urfave/cli 直接 os.Exit。
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
}

// run 执行命令并返回退出码。
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	err := createApp(stdin, stdout, stderr).Run(ctx, args)
	if err == nil {
		return exitOK
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) || isCLIUsageError(err) {
		fmt.Fprintf(stderr, "参数错误: %v\n", err)
		return exitUsage
	}
	fmt.Fprintf(stderr, "错误: %v\n", err)
	return exitError
}
