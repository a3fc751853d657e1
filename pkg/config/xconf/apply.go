package xconf

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/omeyang/xoption/pkg/config/xconfig"
	"github.com/omeyang/xoption/pkg/config/xoption"
	"github.com/omeyang/xoption/pkg/observability/xlog"
)

// Report Apply 的结果，键按写入顺序排列。
type Report struct {
	// Applied 成功写入的键。
	Applied []string
	// Skipped 配置中不存在而被跳过的键。
	Skipped []string
}

// Apply 把文档中的每个叶子写入 cfg，键即选项路径。
//
// 键按字典序写入。依赖尚未写入的键（动态描述的后缀、leadership 的长度）
// 失败后在下一轮重试，直到某一轮没有进展为止。
// follower 的值是列表时按下标逐个写入。值为 null（包括 follower 列表中的元素）时保留默认值。
//
// 写入失败的键不影响其他键，全部错误合并后返回。
func Apply(ctx context.Context, cfg *xconfig.Config, doc Document, opts ...ApplyOption) (*Report, error) {
	o := defaultApplyOptions()
	for _, opt := range opts {
		opt(o)
	}
	values := doc.Values()
	if o.prefix != "" {
		values = doc.Client().Cut(o.prefix).All()
	}

	report := &Report{}
	var errs []error
	pending := slices.Sorted(maps.Keys(values))
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		var retry []string
		last := make(map[string]error)
		for _, key := range pending {
			err := set(ctx, cfg, key, values[key])
			switch {
			case err == nil:
				report.Applied = append(report.Applied, key)
			case retryable(err):
				retry = append(retry, key)
				last[key] = err
			default:
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
		if len(retry) < len(pending) {
			pending = retry
			continue
		}
		for _, key := range retry {
			err := last[key]
			switch {
			case !errors.Is(err, xoption.ErrUnknownOption):
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			case o.strict:
				errs = append(errs, fmt.Errorf("%w: %s: %w", ErrUnknownKey, key, err))
			default:
				report.Skipped = append(report.Skipped, key)
				o.logger.Warn(ctx, "option not in config, skipped", xlog.Config(cfg.Name()), xlog.Path(key))
			}
		}
		break
	}

	err := errors.Join(errs...)
	if err != nil {
		o.logger.Error(ctx, "document apply failed", xlog.Config(cfg.Name()), xlog.Err(err))
	} else {
		o.logger.Info(ctx, "document applied", xlog.Config(cfg.Name()),
			xlog.Count(int64(len(report.Applied))))
	}
	return report, err
}

// set 写入一个键。follower 需要下标，列表值按下标写入。
func set(ctx context.Context, cfg *xconfig.Config, path string, value any) error {
	if value == nil {
		return nil
	}
	err := cfg.Set(ctx, path, value)
	if err == nil || !errors.Is(err, xoption.ErrAPI) {
		return err
	}
	list, ok := value.([]any)
	if !ok {
		return err
	}
	for i, v := range list {
		if v == nil {
			continue
		}
		if err := cfg.SetAt(ctx, path, i, v); err != nil {
			return err
		}
	}
	return nil
}

func retryable(err error) bool {
	return errors.Is(err, xoption.ErrUnknownOption) || errors.Is(err, xoption.ErrLeadership)
}
