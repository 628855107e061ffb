package instance

import "os"

const fallbackID = "salespulse-0"

// ID identifies this process in logs; SALESPULSE_INSTANCE_ID wins over the hostname.
func ID() string {
	if id := os.Getenv("SALESPULSE_INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
