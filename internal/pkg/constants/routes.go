package constants

// Static route constants
const (
	HomeRoute      = "/"
	LoginRoute     = "/login"
	RegisterRoute  = "/register"
	DashboardRoute = "/dashboard"
	PricingRoute   = "/pricing"
)
