// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is shared by all outbound API calls. Every external call is
// bounded: a hung feed or directory request fails its run, it never wedges it.
var HTTPClient = &http.Client{
	Timeout: 15 * time.Second,
}
