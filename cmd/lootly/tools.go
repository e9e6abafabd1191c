package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createGetVersionTool returns the get_version tool definition
func createGetVersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the Lootly MCP server version and environment. Use this to verify connectivity."),
	)
}

// createTestConnectionTool returns the test_connection tool definition
func createTestConnectionTool() mcp.Tool {
	return mcp.NewTool("test_connection",
		mcp.WithDescription("Verify eBay API credentials by acquiring an application token. Reports the environment and token expiry."),
	)
}

// createSearchItemsTool returns the search_items tool definition
func createSearchItemsTool() mcp.Tool {
	return mcp.NewTool("search_items",
		mcp.WithDescription("Search eBay listings via the Browse API. Returns matching item summaries with price, condition, and seller info."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search keywords (e.g., 'vintage camera', 'nintendo switch oled')"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (default: 10, max: 50)"),
		),
		mcp.WithString("category_id",
			mcp.Description("Restrict results to an eBay category ID"),
		),
		mcp.WithString("sort",
			mcp.Description("Sort order: price, -price, newlyListed, endingSoonest (default: best match)"),
		),
	)
}

// createGetItemTool returns the get_item tool definition
func createGetItemTool() mcp.Tool {
	return mcp.NewTool("get_item",
		mcp.WithDescription("Get full details for a single eBay listing via the Browse API."),
		mcp.WithString("item_id",
			mcp.Required(),
			mcp.Description("eBay item ID (e.g., 'v1|123456789|0')"),
		),
	)
}

// createInitiateUserConsentTool returns the initiate_user_consent tool definition
func createInitiateUserConsentTool() mcp.Tool {
	return mcp.NewTool("initiate_user_consent",
		mcp.WithDescription("Start the eBay user authorization flow. Returns a URL the user must open to grant seller account access."),
		mcp.WithArray("scopes",
			mcp.WithStringItems(),
			mcp.Description("OAuth scopes to request (default: all seller scopes)"),
		),
	)
}

// createCompleteUserConsentTool returns the complete_user_consent tool definition
func createCompleteUserConsentTool() mcp.Tool {
	return mcp.NewTool("complete_user_consent",
		mcp.WithDescription("Complete the eBay user authorization flow with the callback URL eBay redirected to after the user granted access."),
		mcp.WithString("callback_url",
			mcp.Required(),
			mcp.Description("Full redirect URL from eBay, including the code and state parameters"),
		),
	)
}

// createGetUserTokenStatusTool returns the get_user_token_status tool definition
func createGetUserTokenStatusTool() mcp.Tool {
	return mcp.NewTool("get_user_token_status",
		mcp.WithDescription("Check whether a user has authorized seller access and when the token expires."),
	)
}

// createRevokeUserConsentTool returns the revoke_user_consent tool definition
func createRevokeUserConsentTool() mcp.Tool {
	return mcp.NewTool("revoke_user_consent",
		mcp.WithDescription("Discard the stored user authorization. Seller API calls will require re-authorization afterwards."),
	)
}

// createGetAuthStatusTool returns the get_auth_status tool definition
func createGetAuthStatusTool() mcp.Tool {
	return mcp.NewTool("get_auth_status",
		mcp.WithDescription("Show the token cache, acquisition metrics, and daily API call budget usage."),
	)
}

// createTradingCallTool returns the trading_api_call tool definition
func createTradingCallTool() mcp.Tool {
	return mcp.NewTool("trading_api_call",
		mcp.WithDescription("Execute a legacy Trading API call and return the raw XML response. Requires user authorization."),
		mcp.WithString("call_name",
			mcp.Required(),
			mcp.Description("Trading API call name (e.g., 'GeteBayOfficialTime', 'GetMyeBaySelling')"),
		),
		mcp.WithString("request_xml",
			mcp.Description("Inner request XML placed inside the call envelope (default: empty)"),
		),
	)
}

// createClearTokenCacheTool returns the clear_token_cache tool definition
func createClearTokenCacheTool() mcp.Tool {
	return mcp.NewTool("clear_token_cache",
		mcp.WithDescription("Clear all cached OAuth tokens. The next API call will fetch fresh tokens."),
	)
}
