package app

import (
	"context"
	"fmt"
	"strings"

	agcfg "antigravity/internal/config"
	"antigravity/internal/ledger"
	"antigravity/internal/logger"
	"antigravity/internal/oracle"
	apihttp "antigravity/internal/transport/http/api"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 服务。
type App struct {
	cfg     *agcfg.Config
	account *ledger.Account
	server  *apihttp.Server

	marketStack *MarketStack
	prompts     *oracle.PromptStore
	callLog     *oracle.CallLog

	snapshotPath string
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *agcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务并阻塞到 ctx 取消。退出前持久化口座快照。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.close()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Infof("✓ HTTP 服务监听 %s", a.server.Addr())
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

func (a *App) close() {
	if path := strings.TrimSpace(a.snapshotPath); path != "" && a.account != nil {
		if err := a.account.Save(path); err != nil {
			logger.Warnf("保存口座快照失败 path=%s: %v", path, err)
		} else {
			logger.Infof("✓ 口座快照已保存 path=%s", path)
		}
	}
	a.marketStack.close()
	closeOracleStack(a.prompts, a.callLog)
}
