package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the creditrail MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolCheckBalance = mcp.NewTool("check_balance",
	mcp.WithDescription(
		"Check the current credit balance for the API key's account. "+
			"Credits are granted by captured payments and spent by service debits."),
)

var ToolCreditHistory = mcp.NewTool("credit_history",
	mcp.WithDescription(
		"List recent ledger entries for the API key's account, newest first. "+
			"Shows purchases, debits, refunds, and admin adjustments with the balance after each entry."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of entries to return (default 20, max 200)")),
	mcp.WithNumber("offset",
		mcp.Description("Number of entries to skip, for paging")),
)

var ToolGetOrder = mcp.NewTool("get_order",
	mcp.WithDescription(
		"Look up a payment order by its provider-assigned order ID. "+
			"Shows the order's amount, requested credits, and reconciliation status "+
			"(created, paid, failed, or refunded)."),
	mcp.WithString("order_id",
		mcp.Required(),
		mcp.Description("The provider order ID (e.g. 'ord_...')")),
)

var ToolListOrders = mcp.NewTool("list_orders",
	mcp.WithDescription(
		"List the account's payment orders, newest first. "+
			"Use this to see which orders are still awaiting payment."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of orders to return (default 20)")),
)

var ToolListUnreconciled = mcp.NewTool("list_unreconciled",
	mcp.WithDescription(
		"List orders stuck in 'created' for longer than a threshold, meaning no payment "+
			"event has arrived for them yet. Requires an admin API key."),
	mcp.WithString("older_than",
		mcp.Description("Age threshold as a Go duration (e.g. '15m', '1h'). Default 15m.")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of orders to return (default 100)")),
)

var ToolEventCounts = mcp.NewTool("event_counts",
	mcp.WithDescription(
		"Show webhook event marker counts grouped by status (processed, ignored, "+
			"amount_mismatch, error, ...). Requires an admin API key."),
)
