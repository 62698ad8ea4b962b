// Command tokkitd is a minimal daemon wiring the pieces of tokkit
// together: it keeps one named access token fresh in the background and
// serves its status over an optional management HTTP surface, in the
// spirit of the original project's query_token example.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/zalando-incubator/tokkit"
	"github.com/zalando-incubator/tokkit/credentials"
	"github.com/zalando-incubator/tokkit/internal/config"
	"github.com/zalando-incubator/tokkit/internal/managementapi"
	"github.com/zalando-incubator/tokkit/introspection"
	"github.com/zalando-incubator/tokkit/metrics"
	"github.com/zalando-incubator/tokkit/tokenmanager"
	"github.com/zalando-incubator/tokkit/tokenprovider"
)

// tokenName is the only identifier tokkitd manages; it satisfies
// tokenmanager.Identifier via its String method below.
type tokenName string

func (t tokenName) String() string { return string(t) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("tokkitd: failed to load configuration")
	}
	configFile := defaultString(os.Getenv("TOKKIT_CONFIG_FILE"), "tokkit.yaml")
	if err := cfg.LoadYAMLOverlay(configFile); err != nil {
		log.WithError(err).Fatal("tokkitd: failed to load YAML configuration overlay")
	}
	configureLogging(cfg)

	credProvider, err := credentials.WithDefaultParsersFromEnv()
	if err != nil {
		log.WithError(err).Fatal("tokkitd: failed to configure credentials provider")
	}
	defer credProvider.Close()

	authProvider, err := tokenprovider.FromEnvWithCredentialsProvider(credProvider)
	if err != nil {
		log.WithError(err).Fatal("tokkitd: failed to configure authorization server provider")
	}

	tokenID := tokenName(defaultString(cfg.ManagedTokenID, "default"))
	scopes := scopesFromEnv(cfg.ManagedTokenScopes)

	group, err := tokenmanager.NewManagedTokenGroupBuilder[tokenName](authProvider).
		WithToken(tokenID, scopes...).
		Build()
	if err != nil {
		log.WithError(err).Fatal("tokkitd: failed to build managed token group")
	}

	mgr, err := tokenmanager.StartAndWait([]tokenmanager.ManagedTokenGroup[tokenName]{group}, 30*time.Second)
	if err != nil {
		log.WithError(err).Fatal("tokkitd: initial token refresh did not complete")
	}
	defer mgr.Close()

	reader := mgr.Reader().Pinned(tokenID)
	log.WithField("token_id", tokenID.String()).Info("tokkitd: managed token is ready")

	if cfg.TokenIntrospectionEndpoint != "" {
		client, err := buildIntrospectionClient(cfg)
		if err != nil {
			log.WithError(err).Fatal("tokkitd: failed to configure introspection client")
		}
		demoIntrospect(client, reader)
	}

	if cfg.ManagementAddr != "" {
		go serveManagementAPI(cfg.ManagementAddr, mgr)
	}

	waitForShutdown()
}

func configureLogging(cfg *config.Config) {
	log.SetLevel(cfg.ParseLevel())
	if cfg.LogFile != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		})
	}
}

func buildIntrospectionClient(cfg *config.Config) (*introspection.Client, error) {
	parser := introspection.NewConfigurableParser(
		defaultString(cfg.TokenInfoParserUserIDField, "uid"),
		defaultString(cfg.TokenInfoParserScopeField, "scope"),
		defaultString(cfg.TokenInfoParserExpiresField, "expires_in"),
	)

	builder := introspection.NewBuilder(parser).
		WithEndpoint(cfg.TokenIntrospectionEndpoint).
		WithQueryParameter(cfg.TokenIntrospectionQueryParameter)

	if cfg.TokenIntrospectionFallbackEndpoint != "" {
		builder = builder.WithFallbackEndpoint(cfg.TokenIntrospectionFallbackEndpoint)
	}

	collector, err := metricsCollector(cfg)
	if err != nil {
		return nil, err
	}
	builder = builder.WithMetrics(collector)

	return builder.Build()
}

func metricsCollector(cfg *config.Config) (metrics.Collector, error) {
	if cfg.RedisAddr == "" {
		return metrics.NewInMemoryCollector(), nil
	}
	return metrics.NewRedisCollector(metrics.RedisConfig{Addr: cfg.RedisAddr})
}

func demoIntrospect(client *introspection.Client, reader *tokenmanager.PinnedReader[tokenName]) {
	tok, err := reader.GetAccessToken()
	if err != nil {
		log.WithError(err).Warn("tokkitd: no cached token available for introspection demo")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	info, err := client.Introspect(ctx, tok, time.Second)
	if err != nil {
		log.WithError(err).Warn("tokkitd: introspection demo call failed")
		return
	}
	log.WithField("active", info.Active).WithField("scopes", info.Scopes).Info("tokkitd: introspection demo succeeded")
}

func serveManagementAPI(addr string, mgr *tokenmanager.Manager[tokenName]) {
	router := managementapi.NewRouter(mgr)
	log.WithField("addr", addr).Info("tokkitd: management API listening")
	if err := http.ListenAndServe(addr, router); err != nil {
		log.WithError(err).Error("tokkitd: management API server stopped")
	}
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("tokkitd: shutting down")
}

func scopesFromEnv(raw string) []tokkit.Scope {
	if raw == "" {
		return nil
	}
	return tokkit.SplitScopes(raw)
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
