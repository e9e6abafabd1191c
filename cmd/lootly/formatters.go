package main

import (
	"fmt"
	"strings"
)

// searchResult is the Browse API item_summary/search response subset we render.
type searchResult struct {
	Total         int           `json:"total"`
	ItemSummaries []itemSummary `json:"itemSummaries"`
}

type itemSummary struct {
	ItemID     string     `json:"itemId"`
	Title      string     `json:"title"`
	Condition  string     `json:"condition"`
	Price      *itemPrice `json:"price"`
	Seller     *seller    `json:"seller"`
	ItemURL    string     `json:"itemWebUrl"`
	BuyingOpts []string   `json:"buyingOptions"`
}

type itemPrice struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type seller struct {
	Username           string `json:"username"`
	FeedbackPercentage string `json:"feedbackPercentage"`
	FeedbackScore      int    `json:"feedbackScore"`
}

// itemDetail is the Browse API item response subset we render.
type itemDetail struct {
	ItemID            string     `json:"itemId"`
	Title             string     `json:"title"`
	ShortDescription  string     `json:"shortDescription"`
	Condition         string     `json:"condition"`
	Price             *itemPrice `json:"price"`
	Seller            *seller    `json:"seller"`
	ItemURL           string     `json:"itemWebUrl"`
	CategoryPath      string     `json:"categoryPath"`
	ItemLocation      *location  `json:"itemLocation"`
	EstimatedQuantity int        `json:"estimatedAvailableQuantity"`
	BuyingOpts        []string   `json:"buyingOptions"`
}

type location struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

func formatPrice(p *itemPrice) string {
	if p == nil {
		return "n/a"
	}
	return p.Value + " " + p.Currency
}

// formatSearchResults renders item summaries as markdown.
func formatSearchResults(query string, result *searchResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Search Results: %s\n\n", query))
	sb.WriteString(fmt.Sprintf("%d total matches, showing %d\n\n", result.Total, len(result.ItemSummaries)))

	if len(result.ItemSummaries) == 0 {
		sb.WriteString("No items found.\n")
		return sb.String()
	}

	for i, item := range result.ItemSummaries {
		sb.WriteString(fmt.Sprintf("## %d. %s\n\n", i+1, item.Title))
		sb.WriteString(fmt.Sprintf("- Price: %s\n", formatPrice(item.Price)))
		if item.Condition != "" {
			sb.WriteString(fmt.Sprintf("- Condition: %s\n", item.Condition))
		}
		if item.Seller != nil {
			sb.WriteString(fmt.Sprintf("- Seller: %s (%s%% positive, %d ratings)\n",
				item.Seller.Username, item.Seller.FeedbackPercentage, item.Seller.FeedbackScore))
		}
		if len(item.BuyingOpts) > 0 {
			sb.WriteString(fmt.Sprintf("- Buying options: %s\n", strings.Join(item.BuyingOpts, ", ")))
		}
		sb.WriteString(fmt.Sprintf("- Item ID: `%s`\n", item.ItemID))
		if item.ItemURL != "" {
			sb.WriteString(fmt.Sprintf("- Link: %s\n", item.ItemURL))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatItemDetail renders a single listing as markdown.
func formatItemDetail(item *itemDetail) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", item.Title))
	sb.WriteString(fmt.Sprintf("- Price: %s\n", formatPrice(item.Price)))
	if item.Condition != "" {
		sb.WriteString(fmt.Sprintf("- Condition: %s\n", item.Condition))
	}
	if item.CategoryPath != "" {
		sb.WriteString(fmt.Sprintf("- Category: %s\n", item.CategoryPath))
	}
	if item.EstimatedQuantity > 0 {
		sb.WriteString(fmt.Sprintf("- Available: %d\n", item.EstimatedQuantity))
	}
	if item.ItemLocation != nil {
		loc := item.ItemLocation.Country
		if item.ItemLocation.City != "" {
			loc = item.ItemLocation.City + ", " + loc
		}
		sb.WriteString(fmt.Sprintf("- Ships from: %s\n", loc))
	}
	if item.Seller != nil {
		sb.WriteString(fmt.Sprintf("- Seller: %s (%s%% positive, %d ratings)\n",
			item.Seller.Username, item.Seller.FeedbackPercentage, item.Seller.FeedbackScore))
	}
	if len(item.BuyingOpts) > 0 {
		sb.WriteString(fmt.Sprintf("- Buying options: %s\n", strings.Join(item.BuyingOpts, ", ")))
	}
	if item.ItemURL != "" {
		sb.WriteString(fmt.Sprintf("- Link: %s\n", item.ItemURL))
	}
	if item.ShortDescription != "" {
		sb.WriteString(fmt.Sprintf("\n%s\n", item.ShortDescription))
	}
	return sb.String()
}
