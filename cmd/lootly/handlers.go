package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/lootly/lootly/internal/common"
	"github.com/lootly/lootly/internal/ebay"
	"github.com/lootly/lootly/internal/interfaces"
)

// handleGetVersion implements the get_version tool
func handleGetVersion(cfg *common.Config) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		env := "production"
		if cfg.EBay.Sandbox {
			env = "sandbox"
		}
		result := fmt.Sprintf("Lootly MCP Server\nVersion: %s\nEnvironment: %s\nMarketplace: %s\nStatus: OK",
			common.GetFullVersion(), env, cfg.EBay.Marketplace)
		return textResult(result), nil
	}
}

// handleTestConnection implements the test_connection tool
func handleTestConnection(tokens interfaces.TokenManager, cfg *common.Config, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		if _, err := tokens.GetToken(ctx, ebay.ScopeAPI); err != nil {
			logger.Error().Err(err).Msg("Connection test failed")
			return errorResult(fmt.Sprintf("Connection failed: %v", err)), nil
		}

		env := "production"
		if cfg.EBay.Sandbox {
			env = "sandbox"
		}
		return textResult(fmt.Sprintf("Connected to eBay %s in %s. Application token acquired.",
			env, time.Since(start).Round(time.Millisecond))), nil
	}
}

// handleSearchItems implements the search_items tool
func handleSearchItems(client interfaces.APIClient, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return errorResult("Error: query parameter is required"), nil
		}

		limit := request.GetInt("limit", 10)
		if limit > 50 {
			limit = 50
		}

		params := url.Values{}
		params.Set("q", query)
		params.Set("limit", strconv.Itoa(limit))
		if categoryID := request.GetString("category_id", ""); categoryID != "" {
			params.Set("category_ids", categoryID)
		}
		if sort := request.GetString("sort", ""); sort != "" {
			params.Set("sort", sort)
		}

		raw, err := client.Get(ctx, "/buy/browse/v1/item_summary/search", params, ebay.ScopeAPI)
		if err != nil {
			logger.Error().Err(err).Str("query", query).Msg("Item search failed")
			return errorResult(fmt.Sprintf("Search error: %v", err)), nil
		}

		var result searchResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return errorResult(fmt.Sprintf("Failed to parse search response: %v", err)), nil
		}

		return textResult(formatSearchResults(query, &result)), nil
	}
}

// handleGetItem implements the get_item tool
func handleGetItem(client interfaces.APIClient, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		itemID, err := request.RequireString("item_id")
		if err != nil || itemID == "" {
			return errorResult("Error: item_id parameter is required"), nil
		}

		raw, err := client.Get(ctx, "/buy/browse/v1/item/"+url.PathEscape(itemID), nil, ebay.ScopeAPI)
		if err != nil {
			logger.Error().Err(err).Str("item_id", itemID).Msg("Item lookup failed")
			return errorResult(fmt.Sprintf("Item lookup error: %v", err)), nil
		}

		var item itemDetail
		if err := json.Unmarshal(raw, &item); err != nil {
			return errorResult(fmt.Sprintf("Failed to parse item response: %v", err)), nil
		}

		return textResult(formatItemDetail(&item)), nil
	}
}

// handleInitiateUserConsent implements the initiate_user_consent tool
func handleInitiateUserConsent(tokens interfaces.TokenManager, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		scopes := request.GetStringSlice("scopes", nil)
		for _, scope := range scopes {
			if !ebay.ValidScope(scope) {
				return errorResult(fmt.Sprintf("Error: unknown scope %q", scope)), nil
			}
		}

		session := tokens.InitiateUserConsent(scopes...)

		var sb strings.Builder
		sb.WriteString("# eBay Authorization Required\n\n")
		sb.WriteString("Open this URL in a browser and sign in to grant access:\n\n")
		sb.WriteString(session.AuthorizationURL + "\n\n")
		sb.WriteString("## Requested Permissions\n\n")
		for _, scope := range session.Scopes {
			sb.WriteString(fmt.Sprintf("- %s\n", ebay.ScopeDescription(scope)))
		}
		sb.WriteString(fmt.Sprintf("\nAfter approving, run complete_user_consent with the full redirect URL. The link expires at %s.\n",
			session.ExpiresAt.Format(time.RFC3339)))
		return textResult(sb.String()), nil
	}
}

// handleCompleteUserConsent implements the complete_user_consent tool
func handleCompleteUserConsent(tokens interfaces.TokenManager, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		callbackURL, err := request.RequireString("callback_url")
		if err != nil || callbackURL == "" {
			return errorResult("Error: callback_url parameter is required"), nil
		}

		info, err := tokens.CompleteUserConsent(ctx, callbackURL)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to complete user consent")
			return errorResult(fmt.Sprintf("Authorization error: %v", err)), nil
		}

		var sb strings.Builder
		sb.WriteString("Authorization complete. Seller APIs are now available.\n\n")
		sb.WriteString(fmt.Sprintf("- Token expires: %s\n", info.ExpiresAt.Format(time.RFC3339)))
		if info.HasRefreshToken {
			sb.WriteString("- Refresh token stored: the token renews automatically until the refresh token expires\n")
		}
		return textResult(sb.String()), nil
	}
}

// handleGetUserTokenStatus implements the get_user_token_status tool
func handleGetUserTokenStatus(tokens interfaces.TokenManager) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		info := tokens.GetUserTokenInfo()
		if info == nil {
			return textResult("No user authorization. Run initiate_user_consent to grant seller access."), nil
		}

		var sb strings.Builder
		sb.WriteString("# User Authorization Status\n\n")
		if info.UserID != "" {
			sb.WriteString(fmt.Sprintf("- User: %s\n", info.UserID))
		}
		sb.WriteString(fmt.Sprintf("- Token expires: %s (%s from now)\n",
			info.ExpiresAt.Format(time.RFC3339), time.Until(info.ExpiresAt).Round(time.Second)))
		if info.HasRefreshToken {
			sb.WriteString("- Refresh token: available\n")
		} else {
			sb.WriteString("- Refresh token: none (re-authorization needed at expiry)\n")
		}
		if len(info.Scopes) > 0 {
			sb.WriteString("\n## Granted Scopes\n\n")
			for _, scope := range info.Scopes {
				sb.WriteString(fmt.Sprintf("- %s\n", ebay.ScopeDescription(scope)))
			}
		}
		return textResult(sb.String()), nil
	}
}

// handleRevokeUserConsent implements the revoke_user_consent tool
func handleRevokeUserConsent(tokens interfaces.TokenManager, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tokens.RevokeUserConsent()
		logger.Info().Msg("User consent revoked")
		return textResult("User authorization discarded. Seller API calls will require re-authorization."), nil
	}
}

// handleGetAuthStatus implements the get_auth_status tool
func handleGetAuthStatus(tokens interfaces.TokenManager, client interfaces.APIClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		cache := tokens.GetCacheStatus()
		metrics := tokens.GetMetrics()
		rateLimit := client.RateLimitStatus()

		var sb strings.Builder
		sb.WriteString("# Authentication Status\n\n")
		sb.WriteString(fmt.Sprintf("## Token Cache (%d cached)\n\n", cache.TotalCachedTokens))
		for _, status := range cache.Tokens {
			state := "valid"
			switch {
			case status.IsExpired:
				state = "expired"
			case status.IsNearExpiry:
				state = "near expiry"
			}
			sb.WriteString(fmt.Sprintf("- `%s`: %s, expires %s\n",
				status.CacheKey, state, status.ExpiresAt.Format(time.RFC3339)))
		}
		if cache.TotalCachedTokens == 0 {
			sb.WriteString("- empty\n")
		}

		sb.WriteString("\n## Token Metrics\n\n")
		sb.WriteString(fmt.Sprintf("- Token endpoint requests: %d\n", metrics.TokenRequests))
		sb.WriteString(fmt.Sprintf("- Cache hits: %d\n", metrics.TokenCacheHits))
		sb.WriteString(fmt.Sprintf("- Cache misses: %d\n", metrics.TokenCacheMiss))
		sb.WriteString(fmt.Sprintf("- Coalesced requests: %d\n", metrics.SingleFlightHit))
		sb.WriteString(fmt.Sprintf("- Errors: %d\n", metrics.TokenErrors))

		sb.WriteString("\n## Daily Call Budget\n\n")
		sb.WriteString(fmt.Sprintf("- Used: %d of %d (%.1f%%)\n",
			rateLimit.CallsToday, rateLimit.CallsLimit, rateLimit.PercentUsed))
		sb.WriteString(fmt.Sprintf("- Window started: %s UTC\n", rateLimit.WindowStart.Format("2006-01-02")))
		return textResult(sb.String()), nil
	}
}

// handleTradingCall implements the trading_api_call tool
func handleTradingCall(trading interfaces.TradingAPI, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		callName, err := request.RequireString("call_name")
		if err != nil || callName == "" {
			return errorResult("Error: call_name parameter is required"), nil
		}
		requestXML := request.GetString("request_xml", "")

		body, err := trading.Call(ctx, callName, requestXML)
		if err != nil {
			logger.Error().Err(err).Str("call", callName).Msg("Trading API call failed")
			return errorResult(fmt.Sprintf("Trading API error: %v", err)), nil
		}
		return textResult(string(body)), nil
	}
}

// handleClearTokenCache implements the clear_token_cache tool
func handleClearTokenCache(tokens interfaces.TokenManager, logger *common.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tokens.ClearCache()
		logger.Info().Msg("Token cache cleared")
		return textResult("Token cache cleared. Fresh tokens will be fetched on the next API call."), nil
	}
}

// Helper functions

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}
