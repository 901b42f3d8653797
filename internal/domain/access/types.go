package access

type AccessState string

const (
	// AccessSetup: tenant is active but cannot take payments yet.
	AccessSetup     AccessState = "setup"
	AccessLive      AccessState = "live"
	AccessSuspended AccessState = "suspended"
)

// PublicMode is what the storefront may show to customers.
type PublicMode string

const (
	PublicFull   PublicMode = "full"   // browse and checkout
	PublicBrowse PublicMode = "browse" // catalog and availability only
	PublicHidden PublicMode = "hidden"
)

const (
	CapManageCatalog  = "manage_catalog"
	CapManageBookings = "manage_bookings"
	CapCheckout       = "checkout"
	CapAgent          = "agent"
	CapRotateKeys     = "rotate_keys"
)
