// Package bootstrap wires the static platform adapters plus any
// dynamically registered OpenAPI sources into one SourceRegistry, shared
// by both the query-side server and the ingest-side sync CLI so the two
// binaries never drift on what sources exist.
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/specfusion/specfusion/internal/adapter"
	"github.com/specfusion/specfusion/internal/adapter/dingtalk"
	"github.com/specfusion/specfusion/internal/adapter/douyin"
	"github.com/specfusion/specfusion/internal/adapter/feishu"
	"github.com/specfusion/specfusion/internal/adapter/openapi"
	"github.com/specfusion/specfusion/internal/adapter/pinduoduo"
	"github.com/specfusion/specfusion/internal/adapter/taobao"
	"github.com/specfusion/specfusion/internal/adapter/wechatminiprogram"
	"github.com/specfusion/specfusion/internal/adapter/wechatshop"
	"github.com/specfusion/specfusion/internal/adapter/wecom"
	"github.com/specfusion/specfusion/internal/adapter/xiaohongshu"
	"github.com/specfusion/specfusion/internal/adapter/youzan"
	"github.com/specfusion/specfusion/internal/browser"
	"github.com/specfusion/specfusion/internal/config"
	"github.com/specfusion/specfusion/internal/storage"
)

// openAPISourceConfig is the config blob persisted for sources added via
// "add-openapi"; rebuilt into an adapter on every process start.
type openAPISourceConfig struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	SpecURL string `json:"spec_url"`
}

// BuildRegistry registers every platform adapter SpecFusion ships, plus any
// OpenAPI sources previously persisted by "add-openapi". A single headful
// browser.Driver is shared by the adapters that need one: RunSource drives
// one source at a time, so there is never concurrent access across them.
func BuildRegistry(ctx context.Context, cfg *config.Config, store *storage.Store, log *zap.Logger) (*adapter.SourceRegistry, error) {
	reg := adapter.NewSourceRegistry()

	var driver browser.Driver = browser.NewChromeDriver(ctx)

	reg.Register(wecom.New("WECOM_COOKIES", "", wecom.WithBrowser(driver), wecom.WithLogger(log)))
	reg.Register(dingtalk.New(driver))
	reg.Register(xiaohongshu.New(driver))
	reg.Register(feishu.New())
	reg.Register(douyin.New())
	reg.Register(youzan.New())
	reg.Register(wechatminiprogram.New())
	reg.Register(wechatshop.New())

	var refresher taobao.SessionRefresher = taobao.CookieSessionRefresher{Cookie: cfg.TaobaoCookie}
	reg.Register(taobao.New(refresher, 1))

	reg.Register(pinduoduo.New(cfg.PDDJSONPath, cfg.PDDCookie))

	if store != nil {
		configs, err := store.GetSourceConfigs(ctx)
		if err != nil {
			return nil, fmt.Errorf("load persisted source configs: %w", err)
		}
		for id, raw := range configs {
			var oc openAPISourceConfig
			if err := json.Unmarshal([]byte(raw), &oc); err != nil || oc.Type != "openapi" {
				continue
			}
			reg.Register(openapi.New(id, oc.Name, oc.SpecURL))
		}
	}

	return reg, nil
}
