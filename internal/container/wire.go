//go:build wireinject
// +build wireinject

package container

import (
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/GaseousIce/wallpaper-scraper/internal/app"
	"github.com/GaseousIce/wallpaper-scraper/internal/config"
)

// InitializeApp assembles the application with all dependencies
func InitializeApp(cfg *config.Config, logger *zap.Logger) (*app.App, func(), error) {
	wire.Build(
		// Transport
		app.NewHTTPClient,
		ProvideLimiters,

		// Providers
		app.BuildSources,

		// Observers
		ProvideReporter,
		ProvideEventObserver,
		ProvideObserver,

		// Engine
		ProvideEngine,

		// Storage
		ProvideMirror,

		// Application
		app.New,
	)

	return nil, nil, nil
}
