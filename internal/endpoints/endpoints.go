package endpoints

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrUnknownEndpoint is returned by Path when the logical name is not in Table.
var ErrUnknownEndpoint = errors.New("unknown endpoint")

// Table maps logical operation names to backend path templates.
// Placeholders are written as :name and resolved with Resolve.
var Table = map[string]string{
	"auth.login":   "/auth/login",
	"auth.me":      "/auth/me",
	"auth.logout":  "/auth/logout",
	"auth.refresh": "/auth/refresh",

	"users.profile":    "/users/profile",
	"users.update":     "/users/update",
	"users.list":       "/users",
	"users.create":     "/users/create",
	"users.delete":     "/users/:id",
	"users.activities": "/users/:id/activities",
	"users.sessions":   "/users/:id/sessions",

	"company.profile":        "/company/profile",
	"company.update":         "/company/update",
	"company.documents":      "/company/documents",
	"company.uploadDocument": "/company/documents/upload",

	"documents.list":   "/company/:companyId/documents",
	"documents.detail": "/documents/:documentId",
	"documents.upload": "/company/:companyId/documents/upload",
	"documents.status": "/documents/:documentId/status",

	"subscriptions.list":   "/subscriptions",
	"subscriptions.plans":  "/subscriptions/plans",
	"subscriptions.create": "/subscriptions/create",
	"subscriptions.cancel": "/subscriptions/:id/cancel",
	"subscriptions.renew":  "/subscriptions/:id/renew",

	"tokens.balance":           "/tokens/balance",
	"tokens.purchase":          "/tokens/purchase",
	"tokens.usage":             "/tokens/usage",
	"tokens.history":           "/tokens/history",
	"tokens.addCustomerTokens": "/admin/customers/:customerId/tokens/add",
	"tokens.detailedUsage":     "/tokens/usage/detailed",

	"customers.list":                 "/customers",
	"customers.financial":            "/customers/financial",
	"customers.corporate":            "/customers/corporate",
	"customers.individual":           "/customers/individual",
	"customers.create":               "/customers/create",
	"customers.update":               "/customers/:id",
	"customers.delete":               "/customers/:id",
	"customers.getById":              "/customers/:id",
	"customers.statistics":           "/customers/statistics",
	"customers.getDocuments":         "/customers/:id/documents",
	"customers.uploadDocument":       "/customers/:id/documents",
	"customers.validate":             "/customers/:id/validate",
	"customers.validationProcess":    "/customers/:customerId/validation",
	"customers.extendedInfo":         "/customers/:customerId/extended",
	"customers.initiateValidation":   "/customers/:customerId/validation/initiate",
	"customers.updateValidationStep": "/customers/:customerId/validation/steps/:stepId",
	"customers.validateDocument":     "/customers/:customerId/documents/:documentId/validate",

	"finance.transactions":          "/finance/transactions",
	"finance.invoices":              "/finance/invoices",
	"finance.payments":              "/finance/payments",
	"finance.manualPayments":        "/finance/payments/manual",
	"finance.revenue":               "/finance/revenue",
	"finance.expenses":              "/finance/expenses",
	"finance.createTransaction":     "/finance/transactions/create",
	"finance.createInvoice":         "/finance/invoices/create",
	"finance.getInvoice":            "/finance/invoices/:id",
	"finance.payInvoice":            "/finance/invoices/:id/pay",
	"finance.validateManualPayment": "/payments/:transactionId/validate",

	"dashboard.summary":        "/dashboard/summary",
	"dashboard.customerStats":  "/dashboard/customers",
	"dashboard.financialStats": "/dashboard/financial",
	"dashboard.tokenStats":     "/dashboard/tokens",
	"dashboard.activityStream": "/dashboard/activities",

	"settings.general":       "/settings/general",
	"settings.security":      "/settings/security",
	"settings.notifications": "/settings/notifications",
	"settings.billing":       "/settings/billing",
	"settings.appearance":    "/settings/appearance",
	"settings.update":        "/settings/:section",
}

var placeholderPattern = regexp.MustCompile(`:([A-Za-z][A-Za-z0-9_]*)`)

// Resolve substitutes every :key occurrence in template with params[key].
// Placeholders without a matching key are left untouched. Values are inserted
// literally, with no escaping.
func Resolve(template string, params map[string]string) string {
	if len(params) == 0 {
		return template
	}
	// Longest keys first so :id never rewrites the head of :idx.
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	out := template
	for _, k := range keys {
		out = strings.ReplaceAll(out, ":"+k, params[k])
	}
	return out
}

// Path looks up a logical endpoint name and resolves it with params.
func Path(name string, params map[string]string) (string, error) {
	tmpl, ok := Table[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEndpoint, name)
	}
	return Resolve(tmpl, params), nil
}

// Placeholders lists the parameter names a template expects, in order of appearance.
func Placeholders(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	names := make([]string, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		names = append(names, m[1])
	}
	return names
}

// Unresolved reports the placeholders still present in a path.
// A non-empty result before dispatch is a caller bug.
func Unresolved(path string) []string {
	return Placeholders(path)
}
