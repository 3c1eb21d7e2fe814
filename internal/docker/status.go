package docker

import (
	"context"
	"net/http"
	"time"
)

// ServiceStatus represents the status of a service
type ServiceStatus int

const (
	ServiceUnknown ServiceStatus = iota
	ServiceUp
	ServiceDown
	ServiceStarting
)

func (s ServiceStatus) String() string {
	switch s {
	case ServiceUp:
		return "up"
	case ServiceDown:
		return "down"
	case ServiceStarting:
		return "starting"
	default:
		return "unknown"
	}
}

// StackStatus represents the status of all services
type StackStatus struct {
	Database ServiceStatus
	DBError  error
	App      ServiceStatus
	AppURL   string
}

// Pinger checks the database once.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status returns health status of the database and web app
func Status(ctx context.Context, db Pinger, appURL string) *StackStatus {
	status := &StackStatus{AppURL: appURL}

	if err := db.Ping(ctx); err != nil {
		status.Database = ServiceDown
		status.DBError = err
	} else {
		status.Database = ServiceUp
	}

	status.App = checkHealth(ctx, appURL)

	return status
}

func checkHealth(ctx context.Context, url string) ServiceStatus {
	client := &http.Client{
		Timeout: 2 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ServiceUnknown
	}

	resp, err := client.Do(req)
	if err != nil {
		return ServiceDown
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < 500:
		return ServiceUp
	case resp.StatusCode == http.StatusServiceUnavailable:
		return ServiceStarting
	default:
		return ServiceDown
	}
}
