package domain

// Credential identifies one provider instance: an API key plus optional
// endpoint override. A vendor may have several instances (keys, regions)
// that the pipeline iterates.
type Credential struct {
	// ID names the instance for logging and error attribution.
	ID      string
	APIKey  string
	BaseURL string
	// Extra carries vendor-specific settings (project id, region).
	Extra map[string]string
}

// Label returns a human-readable instance name.
func (c Credential) Label(vendor string) string {
	if c.ID != "" {
		return vendor + "/" + c.ID
	}
	return vendor
}
