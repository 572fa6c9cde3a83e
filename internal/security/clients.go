package security

// In-memory client registry (replace with DB/config later)
type Client struct {
	ID      string
	Secret  string
	Perms   []string // e.g. {"orders.write","payments.write"}
	Enabled bool
}

var Clients = map[string]Client{
	"fortisel-mobile": {ID: "fortisel-mobile", Secret: "mobile-secret", Perms: []string{"orders.read", "orders.write", "payments.read", "payments.write", "users.write"}, Enabled: true},
	"fortisel-admin":  {ID: "fortisel-admin", Secret: "admin-secret", Perms: []string{"orders.read", "orders.write", "orders.admin", "payments.read", "payments.write"}, Enabled: true},
	"svc-analytics":   {ID: "svc-analytics", Secret: "ana-secret", Perms: []string{"orders.read", "payments.read"}, Enabled: true},
}
