package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *RailClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *RailClient) *Handlers {
	return &Handlers{client: client}
}

// HandleCheckBalance returns the account's credit balance.
func (h *Handlers) HandleCheckBalance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetBalance(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check balance: %v", err)), nil
	}

	var resp struct {
		UserID  string `json:"userId"`
		Credits int64  `json:"credits"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse balance: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf(
		"Account %s has %d credit(s).", resp.UserID, resp.Credits)), nil
}

// HandleCreditHistory lists recent ledger entries.
func (h *Handlers) HandleCreditHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)
	offset := req.GetInt("offset", 0)

	raw, err := h.client.GetHistory(ctx, limit, offset)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch history: %v", err)), nil
	}

	text, err := formatHistory(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse history: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetOrder looks up one order.
func (h *Handlers) HandleGetOrder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	orderID := req.GetString("order_id", "")
	if orderID == "" {
		return mcp.NewToolResultError("order_id is required"), nil
	}

	raw, err := h.client.GetOrder(ctx, orderID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch order: %v", err)), nil
	}

	var resp struct {
		Order orderInfo `json:"order"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse order: %v", err)), nil
	}

	return mcp.NewToolResultText(formatOrder(resp.Order)), nil
}

// HandleListOrders lists the account's orders.
func (h *Handlers) HandleListOrders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)

	raw, err := h.client.ListOrders(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list orders: %v", err)), nil
	}

	text, err := formatOrderList(raw, "No orders found.")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse orders: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListUnreconciled lists orders still waiting for a payment event.
func (h *Handlers) HandleListUnreconciled(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	olderThan := req.GetString("older_than", "")
	limit := req.GetInt("limit", 100)

	raw, err := h.client.ListUnreconciled(ctx, olderThan, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list unreconciled orders: %v", err)), nil
	}

	text, err := formatOrderList(raw, "No unreconciled orders. Every created order has been matched to a payment event.")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse orders: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleEventCounts summarizes webhook marker statuses.
func (h *Handlers) HandleEventCounts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.EventCounts(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch event counts: %v", err)), nil
	}

	var resp struct {
		Events map[string]int64 `json:"events"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse event counts: %v", err)), nil
	}
	if len(resp.Events) == 0 {
		return mcp.NewToolResultText("No payment events recorded yet."), nil
	}

	statuses := make([]string, 0, len(resp.Events))
	for s := range resp.Events {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)

	var sb strings.Builder
	sb.WriteString("Payment events by status:\n")
	for _, s := range statuses {
		fmt.Fprintf(&sb, "  %-18s %d\n", s, resp.Events[s])
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// --- Formatting helpers ---

type ledgerEntry struct {
	ID           string    `json:"id"`
	Delta        int64     `json:"delta"`
	Kind         string    `json:"kind"`
	Reason       string    `json:"reason"`
	BalanceAfter int64     `json:"balanceAfter"`
	CreatedAt    time.Time `json:"createdAt"`
}

type orderInfo struct {
	OrderID          string    `json:"orderId"`
	Amount           int64     `json:"amount"`
	CreditsRequested int64     `json:"creditsRequested"`
	Status           string    `json:"status"`
	PaymentID        string    `json:"paymentId"`
	CreatedAt        time.Time `json:"createdAt"`
}

func formatHistory(raw json.RawMessage) (string, error) {
	var resp struct {
		Entries []ledgerEntry `json:"entries"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Entries) == 0 {
		return "No ledger entries yet.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d ledger entr(ies), newest first:\n\n", len(resp.Entries))
	for i, e := range resp.Entries {
		sign := ""
		if e.Delta > 0 {
			sign = "+"
		}
		fmt.Fprintf(&sb, "%d. %s%d credit(s) [%s] -> balance %d\n", i+1, sign, e.Delta, e.Kind, e.BalanceAfter)
		if e.Reason != "" {
			fmt.Fprintf(&sb, "   %s\n", e.Reason)
		}
		fmt.Fprintf(&sb, "   %s\n", e.CreatedAt.Format(time.RFC3339))
	}
	return sb.String(), nil
}

func formatOrder(o orderInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Order %s\n", o.OrderID)
	fmt.Fprintf(&sb, "  Status: %s\n", o.Status)
	fmt.Fprintf(&sb, "  Amount: %d (minor units) for %d credit(s)\n", o.Amount, o.CreditsRequested)
	if o.PaymentID != "" {
		fmt.Fprintf(&sb, "  Payment: %s\n", o.PaymentID)
	}
	if !o.CreatedAt.IsZero() {
		fmt.Fprintf(&sb, "  Created: %s\n", o.CreatedAt.Format(time.RFC3339))
	}
	return sb.String()
}

func formatOrderList(raw json.RawMessage, emptyMsg string) (string, error) {
	var resp struct {
		Orders []orderInfo `json:"orders"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Orders) == 0 {
		return emptyMsg, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d order(s):\n\n", len(resp.Orders))
	for i, o := range resp.Orders {
		fmt.Fprintf(&sb, "%d. %s [%s] %d credit(s) for %d minor units\n",
			i+1, o.OrderID, o.Status, o.CreditsRequested, o.Amount)
		if o.PaymentID != "" {
			fmt.Fprintf(&sb, "   payment %s\n", o.PaymentID)
		}
	}
	return sb.String(), nil
}
