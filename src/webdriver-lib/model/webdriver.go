package model

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Capabilities is a map that stores capabilities of a session.
type Capabilities map[string]interface{}

// ServiceAddress locates a driver that has accepted connections.
type ServiceAddress struct {
	Scheme   string
	Host     string
	Port     int
	BasePath string
}

// NewServiceAddress returns an http address for host:port with a normalized base path.
func NewServiceAddress(host string, port int, basePath string) ServiceAddress {
	basePath = strings.TrimRight(basePath, "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	return ServiceAddress{
		Scheme:   "http",
		Host:     host,
		Port:     port,
		BasePath: basePath,
	}
}

// String implements fmt.Stringer.
func (a ServiceAddress) String() string {
	return fmt.Sprintf("%s://%s%s", a.Scheme, net.JoinHostPort(a.Host, strconv.Itoa(a.Port)), a.BasePath)
}

// URL joins path onto the base address.
func (a ServiceAddress) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return a.String() + path
}

// IsZero reports whether the address has not been set.
func (a ServiceAddress) IsZero() bool {
	return a.Host == "" && a.Port == 0
}

// Session is a remote session created by the driver.
type Session struct {
	ID           string         `json:"sessionId"`
	Address      ServiceAddress `json:"-"`
	Capabilities Capabilities   `json:"capabilities"`
	// Variant is the protocol dialect selected when the session was created.
	Variant string `json:"variant"`
}

// Active reports whether the session holds an id issued by the driver.
func (s *Session) Active() bool {
	return s != nil && s.ID != ""
}

// CommandRequest is a single resolved dispatch.
type CommandRequest struct {
	Name       string
	Method     string
	URL        string
	PathParams map[string]string
	BodyParams map[string]interface{}
}

// CommandResponse is the decoded envelope of a driver reply.
type CommandResponse struct {
	HTTPStatus int
	// Status is the legacy numeric status, nil for W3C replies.
	Status    *int
	SessionID string
	Value     json.RawMessage
}
