package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/lootly/lootly/internal/common"
	"github.com/lootly/lootly/internal/ebay"
)

func main() {
	// Resolve config path
	configPath := os.Getenv("LOOTLY_CONFIG")

	var paths []string
	if configPath != "" {
		paths = append(paths, configPath)
	}
	config, err := common.LoadConfig(paths...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the MCP transport, so logs go to stderr
	logger := common.NewLogger(config.Logging.Level)

	oauthConfig := ebay.OAuthConfig{
		ClientID:       config.EBay.ClientID,
		ClientSecret:   config.EBay.ClientSecret,
		RedirectURI:    config.EBay.RedirectURI,
		Sandbox:        config.EBay.Sandbox,
		RequestTimeout: config.EBay.GetTimeout(),
		Retry:          retryConfig(config),
	}

	tokens, err := ebay.NewOAuthManager(oauthConfig, ebay.WithLogger(logger))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize OAuth manager")
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	client := ebay.NewRestClient(tokens, ebay.RestConfig{
		Sandbox:            config.EBay.Sandbox,
		Marketplace:        config.EBay.Marketplace,
		RateLimitPerDay:    config.EBay.RateLimitPerDay,
		RateLimitPerSecond: config.EBay.RateLimitPerSecond,
		Timeout:            config.EBay.GetTimeout(),
		Retry:              retryConfig(config),
	}, ebay.WithRestLogger(logger))
	defer client.Close()

	trading := ebay.NewTradingClient(tokens, ebay.TradingConfig{
		Sandbox: config.EBay.Sandbox,
		Timeout: config.EBay.GetTimeout(),
		Retry:   retryConfig(config),
	}, logger)

	mcpServer := server.NewMCPServer(
		"lootly",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)
	registerTools(mcpServer, config, tokens, client, trading, logger)

	env := "production"
	if config.EBay.Sandbox {
		env = "sandbox"
	}
	logger.Info().
		Str("version", common.GetVersion()).
		Str("environment", env).
		Str("marketplace", config.EBay.Marketplace).
		Msg("Starting Lootly MCP server on stdio")

	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Error().Err(err).Msg("MCP server failed")
		os.Exit(1)
	}

	logger.Info().Msg("Server stopped")
}

// retryConfig derives the shared retry policy from config.
func retryConfig(config *common.Config) ebay.RetryConfig {
	cfg := ebay.DefaultRetryConfig()
	if config.EBay.MaxRetries > 0 {
		cfg.MaxAttempts = config.EBay.MaxRetries
	}
	if d := config.EBay.GetRetryDelay(); d > 0 {
		cfg.BaseDelay = d
	}
	if d := config.EBay.GetMaxRetryDelay(); d > 0 {
		cfg.MaxDelay = d
	}
	return cfg
}

// registerTools wires every MCP tool onto the server.
func registerTools(s *server.MCPServer, config *common.Config, tokens *ebay.OAuthManager, client *ebay.RestClient, trading *ebay.TradingClient, logger *common.Logger) {
	s.AddTool(createGetVersionTool(), handleGetVersion(config))
	s.AddTool(createTestConnectionTool(), handleTestConnection(tokens, config, logger))
	s.AddTool(createSearchItemsTool(), handleSearchItems(client, logger))
	s.AddTool(createGetItemTool(), handleGetItem(client, logger))
	s.AddTool(createInitiateUserConsentTool(), handleInitiateUserConsent(tokens, logger))
	s.AddTool(createCompleteUserConsentTool(), handleCompleteUserConsent(tokens, logger))
	s.AddTool(createGetUserTokenStatusTool(), handleGetUserTokenStatus(tokens))
	s.AddTool(createRevokeUserConsentTool(), handleRevokeUserConsent(tokens, logger))
	s.AddTool(createGetAuthStatusTool(), handleGetAuthStatus(tokens, client))
	s.AddTool(createTradingCallTool(), handleTradingCall(trading, logger))
	s.AddTool(createClearTokenCacheTool(), handleClearTokenCache(tokens, logger))
}
