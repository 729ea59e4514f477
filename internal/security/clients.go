package security

// Client is an API client allowed to request staff tokens. Secrets here are
// development defaults; deployments override them via config management.
type Client struct {
	Secret  string
	Perms   []string
	Enabled bool
}

var Clients = map[string]Client{
	"staff-terminal": {
		Secret:  "staff-terminal-secret",
		Perms:   []string{"orders.read", "orders.write", "menu.write"},
		Enabled: true,
	},
	"kitchen-display": {
		Secret:  "kitchen-display-secret",
		Perms:   []string{"orders.read"},
		Enabled: true,
	},
	"payments-relay": {
		Secret:  "payments-relay-secret",
		Perms:   []string{"orders.write"},
		Enabled: true,
	},
}
