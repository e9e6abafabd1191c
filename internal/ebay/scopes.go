package ebay

import "strings"

// eBay OAuth scopes by API family.
const (
	ScopeAPI = "https://api.ebay.com/oauth/api_scope"

	ScopeBuyOffer     = "https://api.ebay.com/oauth/api_scope/buy.offer"
	ScopeBuyOrder     = "https://api.ebay.com/oauth/api_scope/buy.order"
	ScopeBuyMarketing = "https://api.ebay.com/oauth/api_scope/buy.marketing"
	ScopeBuyInsights  = "https://api.ebay.com/oauth/api_scope/buy.marketplace.insights"

	ScopeSellInventory         = "https://api.ebay.com/oauth/api_scope/sell.inventory"
	ScopeSellInventoryReadonly = "https://api.ebay.com/oauth/api_scope/sell.inventory.readonly"
	ScopeSellMarketing         = "https://api.ebay.com/oauth/api_scope/sell.marketing"
	ScopeSellAccount           = "https://api.ebay.com/oauth/api_scope/sell.account"
	ScopeSellAccountReadonly   = "https://api.ebay.com/oauth/api_scope/sell.account.readonly"
	ScopeSellFulfillment       = "https://api.ebay.com/oauth/api_scope/sell.fulfillment"
	ScopeSellAnalytics         = "https://api.ebay.com/oauth/api_scope/sell.analytics.readonly"
	ScopeSellFinances          = "https://api.ebay.com/oauth/api_scope/sell.finances"

	ScopeCommerceCatalog  = "https://api.ebay.com/oauth/api_scope/commerce.catalog.readonly"
	ScopeCommerceTaxonomy = "https://api.ebay.com/oauth/api_scope/commerce.taxonomy.readonly"
	ScopeCommerceIdentity = "https://api.ebay.com/oauth/api_scope/commerce.identity.readonly"
)

// UserConsentScopes are the delegated scopes that require the
// authorization-code flow; the client-credentials grant cannot issue them.
var UserConsentScopes = []string{
	ScopeSellAccount,
	ScopeSellInventory,
	ScopeSellMarketing,
	ScopeSellFulfillment,
	ScopeSellFinances,
}

var scopeDescriptions = map[string]string{
	ScopeAPI:                   "View public data from eBay",
	ScopeBuyOffer:              "Make offers on eBay items",
	ScopeBuyOrder:              "Manage purchase orders",
	ScopeBuyMarketing:          "Access marketing and promotional data",
	ScopeBuyInsights:           "Access marketplace insights and analytics",
	ScopeSellInventory:         "Manage inventory items and listings",
	ScopeSellInventoryReadonly: "Read-only access to inventory items",
	ScopeSellMarketing:         "Manage marketing campaigns and promotions",
	ScopeSellAccount:           "Manage seller account settings and policies",
	ScopeSellAccountReadonly:   "Read-only access to seller account data",
	ScopeSellFulfillment:       "Manage order fulfillment and shipping",
	ScopeSellAnalytics:         "Access seller analytics and performance data",
	ScopeSellFinances:          "Access financial data and reports",
	ScopeCommerceCatalog:       "Access product catalog data",
	ScopeCommerceTaxonomy:      "Access category and taxonomy data",
	ScopeCommerceIdentity:      "Access identity and profile data",
}

// ScopeDescription returns a human-readable description of a scope.
func ScopeDescription(scope string) string {
	if desc, ok := scopeDescriptions[scope]; ok {
		return desc
	}
	return "Unknown scope"
}

// ValidScope reports whether every space-separated scope in the string is
// a known eBay OAuth scope.
func ValidScope(scope string) bool {
	fields := strings.Fields(scope)
	if len(fields) == 0 {
		return false
	}
	for _, s := range fields {
		if _, ok := scopeDescriptions[s]; !ok {
			return false
		}
	}
	return true
}

// RequiresUserConsent reports whether any scope in the space-separated
// string needs a user-delegated token.
func RequiresUserConsent(scope string) bool {
	for _, s := range strings.Fields(scope) {
		for _, delegated := range UserConsentScopes {
			if s == delegated {
				return true
			}
		}
	}
	return false
}

// missingConsentScopes returns the delegated scopes in the request.
func missingConsentScopes(scope string) []string {
	var missing []string
	for _, s := range strings.Fields(scope) {
		for _, delegated := range UserConsentScopes {
			if s == delegated {
				missing = append(missing, s)
			}
		}
	}
	return missing
}
