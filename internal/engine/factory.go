package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/user/courier"
	"github.com/user/courier/internal/config"
	chanhttp "github.com/user/courier/pkg/channel/http"
	"github.com/user/courier/pkg/channel/cors"
	"github.com/user/courier/pkg/channel/local"
	"github.com/user/courier/pkg/channel/notify"
	"github.com/user/courier/pkg/channel/objectstore"
	"github.com/user/courier/pkg/channel/proxy"
	"github.com/user/courier/pkg/compression"
	pkgengine "github.com/user/courier/pkg/engine"
	"github.com/user/courier/pkg/filestorage"
	"github.com/user/courier/pkg/secrets"
)

// ChannelInfo describes a configured channel for listings.
type ChannelInfo struct {
	Label    string           `json:"label"`
	Type     string           `json:"type"`
	Delivery courier.Delivery `json:"delivery"`
	Target   string           `json:"target,omitempty"`
}

// Factory creates channels from configuration. The file storage shared by the
// local mirror and object_store channels is opened on first use.
type Factory struct {
	storageCfg config.FileStorageConfig
	handles    *local.HandleStore

	once       sync.Once
	storage    filestorage.Storage
	storageErr error
}

func NewFactory(storageCfg config.FileStorageConfig) *Factory {
	return &Factory{storageCfg: storageCfg, handles: local.NewHandleStore()}
}

// Handles returns the store used by every local channel the factory creates.
func (f *Factory) Handles() *local.HandleStore {
	return f.handles
}

func (f *Factory) fileStorage(ctx context.Context) (filestorage.Storage, error) {
	f.once.Do(func() {
		f.storage, f.storageErr = filestorage.NewStorage(ctx, f.storageCfg)
	})
	return f.storage, f.storageErr
}

// CreateChannel builds the channel described by cfg.
func (f *Factory) CreateChannel(ctx context.Context, cfg config.ChannelConfig) (courier.Channel, error) {
	httpOpts := func(url string) (chanhttp.Options, error) {
		algo, err := compression.Parse(cfg.Compression)
		if err != nil {
			return chanhttp.Options{}, err
		}
		return chanhttp.Options{
			URL:          url,
			Headers:      cfg.Headers,
			LocatorPaths: cfg.LocatorPaths,
			Compression:  algo,
		}, nil
	}

	switch cfg.Type {
	case config.ChannelDirect:
		opts, err := httpOpts(cfg.URL)
		if err != nil {
			return nil, err
		}
		return chanhttp.NewDirectChannel(opts), nil
	case config.ChannelLocalProxy:
		opts, err := httpOpts(cfg.URL)
		if err != nil {
			return nil, err
		}
		return proxy.NewLocalProxyChannel(opts), nil
	case config.ChannelFunctionProxy:
		opts, err := httpOpts(cfg.URL)
		if err != nil {
			return nil, err
		}
		return proxy.NewFunctionProxyChannel(opts), nil
	case config.ChannelCors:
		opts, err := httpOpts("")
		if err != nil {
			return nil, err
		}
		return cors.NewCorsProxyChannel(cors.Config{
			RelayBase: cfg.Relay,
			Target:    cfg.URL,
			Origin:    cfg.Origin,
			HTTP:      opts,
		})
	case config.ChannelNotify:
		return notify.NewNotificationChannel(notify.Config{
			Provider:       notify.Provider(cfg.Provider),
			URL:            cfg.URL,
			TelegramToken:  cfg.TelegramToken,
			TelegramChatID: cfg.TelegramChatID,
			TelegramAPI:    cfg.TelegramAPI,
			SMTP: notify.SMTPConfig{
				Host:     cfg.SMTP.Host,
				Port:     cfg.SMTP.Port,
				User:     cfg.SMTP.User,
				Password: cfg.SMTP.Password,
				From:     cfg.SMTP.From,
				To:       cfg.SMTP.To,
				SSL:      cfg.SMTP.SSL,
			},
		})
	case config.ChannelLocal:
		var mirror filestorage.Storage
		if cfg.Mirror {
			s, err := f.fileStorage(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to open mirror storage: %w", err)
			}
			mirror = s
		}
		return local.NewObjectURLChannel(f.handles, mirror, cfg.Prefix), nil
	case config.ChannelObjectStore:
		s, err := f.fileStorage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to open object storage: %w", err)
		}
		return objectstore.NewObjectStoreChannel(s, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown channel type: %s", cfg.Type)
	}
}

// BuildRegistry resolves secret references in cfg and creates every configured
// channel in order. Channels already created are closed when a later one fails.
func BuildRegistry(ctx context.Context, cfg *config.Config, logger courier.Logger) (*pkgengine.Registry, *Factory, error) {
	mgr, err := secrets.NewManager(ctx, cfg.Secrets)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create secret manager: %w", err)
	}
	if err := cfg.ResolveSecrets(ctx, mgr); err != nil {
		return nil, nil, err
	}

	f := NewFactory(cfg.Storage)
	entries := make([]pkgengine.Entry, 0, len(cfg.Channels))

	closeAll := func() {
		for _, e := range entries {
			_ = e.Channel.Close()
		}
	}

	for i, chCfg := range cfg.Channels {
		ch, err := f.CreateChannel(ctx, chCfg)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("channel %d (%s): %w", i, chCfg.Label, err)
		}
		entries = append(entries, pkgengine.Entry{Label: chCfg.Label, Channel: ch})
	}

	reg, err := pkgengine.NewRegistry(entries...)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	if logger != nil {
		reg.SetLogger(logger)
	}
	return reg, f, nil
}

// NewOrchestrator builds the registry and an orchestrator configured from cfg.
func NewOrchestrator(ctx context.Context, cfg *config.Config, logger courier.Logger) (*pkgengine.Orchestrator, *pkgengine.Registry, error) {
	reg, _, err := BuildRegistry(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	o := pkgengine.NewOrchestrator(reg)
	o.SetConfig(OrchestratorConfig(cfg))
	if logger != nil {
		o.SetLogger(logger)
	}
	return o, reg, nil
}

// OrchestratorConfig maps the file configuration onto the orchestrator's.
func OrchestratorConfig(cfg *config.Config) pkgengine.Config {
	c := pkgengine.DefaultConfig()
	if cfg.Submission.AttemptTimeout > 0 {
		c.AttemptTimeout = cfg.Submission.AttemptTimeout
	}
	c.Progress.Step = cfg.Progress.Step
	c.Progress.Interval = cfg.Progress.Interval
	c.Progress.Ceiling = cfg.Progress.Ceiling
	return c
}

// Describe lists the configured channels in registry order.
func Describe(cfg *config.Config) []ChannelInfo {
	infos := make([]ChannelInfo, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		info := ChannelInfo{Label: ch.Label, Type: ch.Type, Delivery: courier.DeliveryRemote, Target: ch.URL}
		switch ch.Type {
		case config.ChannelCors:
			if u, err := cors.RelayURL(ch.Relay, ch.URL); err == nil {
				info.Target = u
			}
		case config.ChannelNotify:
			info.Delivery = courier.DeliveryNotification
			if ch.Provider == string(notify.ProviderTelegram) {
				info.Target = "telegram:" + ch.TelegramChatID
			} else if ch.Provider == string(notify.ProviderEmail) {
				info.Target = "mailto:" + ch.SMTP.To
			}
		case config.ChannelLocal:
			info.Delivery = courier.DeliveryLocal
			info.Target = ""
		case config.ChannelObjectStore:
			info.Target = cfg.Storage.Type
		}
		infos = append(infos, info)
	}
	return infos
}
