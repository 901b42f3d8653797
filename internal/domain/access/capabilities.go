package access

func CapabilitiesFor(state AccessState) []string {
	switch state {
	case AccessSuspended:
		// Owners can still read and rotate keys after a suspension.
		return []string{CapRotateKeys}
	case AccessSetup:
		return []string{CapManageCatalog, CapManageBookings, CapAgent, CapRotateKeys}
	case AccessLive:
		return []string{CapManageCatalog, CapManageBookings, CapAgent, CapRotateKeys, CapCheckout}
	default:
		return []string{}
	}
}

func PublicModeFromState(state AccessState) PublicMode {
	switch state {
	case AccessLive:
		return PublicFull
	case AccessSetup:
		return PublicBrowse
	default:
		return PublicHidden
	}
}
