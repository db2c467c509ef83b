//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/biofeedback/internal/bootstrap"
	"github.com/yanqian/biofeedback/internal/domain/auth"
	"github.com/yanqian/biofeedback/internal/domain/biofeedback"
	"github.com/yanqian/biofeedback/internal/domain/health"
	"github.com/yanqian/biofeedback/internal/domain/profile"
	"github.com/yanqian/biofeedback/internal/infra/config"
	"github.com/yanqian/biofeedback/internal/infra/device"
	"github.com/yanqian/biofeedback/internal/infra/healthkit"
	"github.com/yanqian/biofeedback/internal/infra/qwell"
	httpiface "github.com/yanqian/biofeedback/internal/interface/http"
	"github.com/yanqian/biofeedback/pkg/logger"
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		provideLocation,
		provideBiofeedbackConfig,
		provideProfileConfig,
		provideAuthConfig,
		providePrefStore,
		provideDeviceIdentity,
		provideHealthRepository,
		provideQwellClient,
		healthkit.NewSource,
		health.NewService,
		biofeedback.NewHealthAggregator,
		biofeedback.NewAnalyticsScorer,
		biofeedback.NewSyncer,
		profile.NewService,
		auth.NewService,
		wire.Bind(new(health.Source), new(*healthkit.Source)),
		wire.Bind(new(profile.Authorizer), new(*healthkit.Source)),
		wire.Bind(new(profile.HealthScorer), new(*biofeedback.HealthAggregator)),
		wire.Bind(new(profile.AnalyticsScorer), new(*biofeedback.AnalyticsScorer)),
		wire.Bind(new(profile.ScoreHistory), new(*biofeedback.Syncer)),
		wire.Bind(new(biofeedback.AnalyticsClient), new(*qwell.Client)),
		wire.Bind(new(biofeedback.ScoreStore), new(*qwell.Client)),
		wire.Bind(new(auth.DeviceIdentity), new(*device.Identity)),
		wire.Bind(new(qwell.DeviceIdentity), new(*device.Identity)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
